// Package model defines the inputs and reports exchanged with the shrinker.
package model

import (
	"sort"
	"strings"
)

// ContentType is the kind of data a content entry carries.
type ContentType int

const (
	ContentClasses   ContentType = 0 // class files
	ContentResources ContentType = 1 // java resources
)

// String returns the string representation of ContentType.
func (c ContentType) String() string {
	switch c {
	case ContentClasses:
		return "classes"
	case ContentResources:
		return "resources"
	default:
		return "unknown"
	}
}

// Scope says where a content entry comes from.
type Scope int

const (
	ScopeProject           Scope = 0
	ScopeSubProjects       Scope = 1
	ScopeExternalLibraries Scope = 2
	ScopeProvidedOnly      Scope = 3
	ScopeTested            Scope = 4
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeProject:
		return "project"
	case ScopeSubProjects:
		return "sub_projects"
	case ScopeExternalLibraries:
		return "external_libraries"
	case ScopeProvidedOnly:
		return "provided_only"
	case ScopeTested:
		return "tested"
	default:
		return "unknown"
	}
}

// ParseScope parses a scope name; unknown names map to ScopeProject.
func ParseScope(s string) Scope {
	switch strings.ToLower(s) {
	case "sub_projects", "subprojects":
		return ScopeSubProjects
	case "external_libraries", "externallibraries":
		return ScopeExternalLibraries
	case "provided_only", "providedonly":
		return ScopeProvidedOnly
	case "tested":
		return ScopeTested
	default:
		return ScopeProject
	}
}

// Format is the layout of an output location.
type Format int

const (
	FormatDirectory Format = 0
	FormatJar       Format = 1
)

// String returns the string representation of Format.
func (f Format) String() string {
	if f == FormatJar {
		return "jar"
	}
	return "directory"
}

// Status is the change status of an input since the previous run.
type Status int

const (
	StatusNotChanged Status = 0
	StatusAdded      Status = 1
	StatusChanged    Status = 2
	StatusRemoved    Status = 3
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case StatusNotChanged:
		return "not_changed"
	case StatusAdded:
		return "added"
	case StatusChanged:
		return "changed"
	case StatusRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ParseStatus parses a status name; unknown names map to StatusNotChanged.
func ParseStatus(s string) Status {
	switch strings.ToLower(s) {
	case "added":
		return StatusAdded
	case "changed":
		return StatusChanged
	case "removed":
		return StatusRemoved
	default:
		return StatusNotChanged
	}
}

// QualifiedContent is a named input with its content types and scopes.
type QualifiedContent struct {
	Name         string        `json:"name"`
	Path         string        `json:"path"`
	ContentTypes []ContentType `json:"content_types"`
	Scopes       []Scope       `json:"scopes"`
}

// HasClasses reports whether the content carries class files.
func (q QualifiedContent) HasClasses() bool {
	if len(q.ContentTypes) == 0 {
		return true
	}
	for _, t := range q.ContentTypes {
		if t == ContentClasses {
			return true
		}
	}
	return false
}

// JarInput is an archive of class files.
type JarInput struct {
	QualifiedContent
	Status Status `json:"status"`
}

// DirectoryInput is a directory of loose class files. ChangedFiles maps
// paths relative to the directory, '/' separated, to their status.
type DirectoryInput struct {
	QualifiedContent
	Status       Status            `json:"status"`
	ChangedFiles map[string]Status `json:"changed_files,omitempty"`
}

// SortedChanges returns the changed file paths in lexical order.
func (d DirectoryInput) SortedChanges() []string {
	paths := make([]string, 0, len(d.ChangedFiles))
	for p := range d.ChangedFiles {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// TransformInput groups the jars and directories of one input set.
type TransformInput struct {
	Jars        []JarInput       `json:"jars,omitempty"`
	Directories []DirectoryInput `json:"directories,omitempty"`
}

// Empty reports whether the input carries nothing.
func (t TransformInput) Empty() bool {
	return len(t.Jars) == 0 && len(t.Directories) == 0
}
