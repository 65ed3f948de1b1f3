package state

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/class-shrinker/internal/graph"
)

// Field numbers of the state body. The body is a protobuf message written
// with protowire; there is no .proto file.
const (
	fieldNode        protowire.Number = 1
	fieldEdge        protowire.Number = 2
	fieldRoot        protowire.Number = 3
	fieldCounter     protowire.Number = 4
	fieldFingerprint protowire.Number = 5
)

const (
	nodeKind protowire.Number = iota + 1
	nodeName
	nodeDescriptor
	nodeOwner
	nodeDeclared
	nodeAccess
	nodeAnnotation
	nodeProgram
	nodeSuperclass
	nodeInterface
	nodeSourcePath
	nodeSourceEntry
	nodeSignatureType
	nodeMembers
)

func encodeState(st *graph.State) []byte {
	var b []byte
	for i := range st.Nodes {
		b = protowire.AppendTag(b, fieldNode, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeNode(&st.Nodes[i]))
	}
	for _, e := range st.Edges {
		b = appendTriple(b, fieldEdge, uint64(e.From), uint64(e.To), uint64(e.Type))
	}
	for _, r := range st.Roots {
		b = appendTriple(b, fieldRoot, uint64(r.Node), uint64(r.Type), uint64(r.Set))
	}
	for _, c := range st.Counters {
		var m []byte
		m = appendVarint(m, 1, uint64(c.Node))
		m = appendVarint(m, 2, uint64(c.Set))
		m = appendVarint(m, 3, uint64(c.Type))
		m = appendVarint(m, 4, uint64(c.Value))
		b = protowire.AppendTag(b, fieldCounter, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	return appendString(b, fieldFingerprint, st.Fingerprint)
}

func encodeNode(n *graph.NodeRecord) []byte {
	var b []byte
	b = appendVarint(b, nodeKind, uint64(n.Kind))
	b = appendString(b, nodeName, n.Name)
	b = appendString(b, nodeDescriptor, n.Descriptor)
	b = appendVarint(b, nodeOwner, uint64(n.Owner))
	b = appendBool(b, nodeDeclared, n.Declared)
	b = appendVarint(b, nodeAccess, uint64(n.Access))
	for _, a := range n.Annotations {
		b = protowire.AppendTag(b, nodeAnnotation, protowire.BytesType)
		b = protowire.AppendString(b, a)
	}
	b = appendBool(b, nodeProgram, n.Program)
	b = appendString(b, nodeSuperclass, n.Superclass)
	for _, i := range n.Interfaces {
		b = protowire.AppendTag(b, nodeInterface, protowire.BytesType)
		b = protowire.AppendString(b, i)
	}
	b = appendString(b, nodeSourcePath, n.Source.Path)
	b = appendString(b, nodeSourceEntry, n.Source.Entry)
	for _, s := range n.SignatureTypes {
		b = protowire.AppendTag(b, nodeSignatureType, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	if len(n.Members) > 0 {
		var packed []byte
		for _, m := range n.Members {
			packed = protowire.AppendVarint(packed, uint64(m))
		}
		b = protowire.AppendTag(b, nodeMembers, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	return b
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendVarint(b, num, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendTriple(b []byte, num protowire.Number, x, y, z uint64) []byte {
	var m []byte
	m = appendVarint(m, 1, x)
	m = appendVarint(m, 2, y)
	m = appendVarint(m, 3, z)
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

// fields calls fn for every field of a message. Varint values are passed
// in v, length-delimited values in data. Other wire types are rejected.
func fields(b []byte, fn func(num protowire.Number, v uint64, data []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if err := fn(num, v, nil); err != nil {
				return err
			}
		case protowire.BytesType:
			data, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if err := fn(num, 0, data); err != nil {
				return err
			}
		default:
			return fmt.Errorf("field %d: unexpected wire type %d", num, typ)
		}
	}
	return nil
}

func nodeID(v uint64) (graph.NodeID, error) {
	if v > math.MaxInt32 {
		return graph.InvalidNode, fmt.Errorf("node id %d out of range", v)
	}
	return graph.NodeID(v), nil
}

func small[T ~uint8 | ~uint16](v uint64, max uint64) (T, error) {
	if v > max {
		return 0, fmt.Errorf("value %d out of range", v)
	}
	return T(v), nil
}

func decodeState(b []byte) (*graph.State, error) {
	st := &graph.State{}
	err := fields(b, func(num protowire.Number, _ uint64, data []byte) error {
		switch num {
		case fieldNode:
			n, err := decodeNode(data)
			if err != nil {
				return fmt.Errorf("node %d: %w", len(st.Nodes), err)
			}
			st.Nodes = append(st.Nodes, n)
		case fieldEdge:
			from, to, typ, err := decodeTriple(data)
			if err != nil {
				return fmt.Errorf("edge: %w", err)
			}
			t, err := small[graph.DependencyType](typ, math.MaxUint8)
			if err != nil {
				return err
			}
			st.Edges = append(st.Edges, graph.EdgeRecord{From: from, To: graph.NodeID(to), Type: t})
		case fieldRoot:
			node, typ, set, err := decodeTriple(data)
			if err != nil {
				return fmt.Errorf("root: %w", err)
			}
			t, err := small[graph.DependencyType](typ, math.MaxUint8)
			if err != nil {
				return err
			}
			cs, err := small[graph.CounterSet](set, math.MaxUint8)
			if err != nil {
				return err
			}
			st.Roots = append(st.Roots, graph.RootRecord{Node: node, Type: t, Set: cs})
		case fieldCounter:
			c, err := decodeCounter(data)
			if err != nil {
				return fmt.Errorf("counter: %w", err)
			}
			st.Counters = append(st.Counters, c)
		case fieldFingerprint:
			st.Fingerprint = string(data)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func decodeTriple(b []byte) (graph.NodeID, uint64, uint64, error) {
	var x, y, z uint64
	err := fields(b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			x = v
		case 2:
			y = v
		case 3:
			z = v
		}
		return nil
	})
	if err != nil {
		return graph.InvalidNode, 0, 0, err
	}
	if y > math.MaxInt32 {
		return graph.InvalidNode, 0, 0, fmt.Errorf("value %d out of range", y)
	}
	id, err := nodeID(x)
	return id, y, z, err
}

func decodeCounter(b []byte) (graph.CounterRecord, error) {
	var c graph.CounterRecord
	var node, set, typ, value uint64
	err := fields(b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			node = v
		case 2:
			set = v
		case 3:
			typ = v
		case 4:
			value = v
		}
		return nil
	})
	if err != nil {
		return c, err
	}
	if c.Node, err = nodeID(node); err != nil {
		return c, err
	}
	if c.Set, err = small[graph.CounterSet](set, math.MaxUint8); err != nil {
		return c, err
	}
	if c.Type, err = small[graph.DependencyType](typ, math.MaxUint8); err != nil {
		return c, err
	}
	if value > math.MaxUint32 {
		return c, fmt.Errorf("counter value %d out of range", value)
	}
	c.Value = uint32(value)
	return c, nil
}

func decodeNode(b []byte) (graph.NodeRecord, error) {
	var n graph.NodeRecord
	err := fields(b, func(num protowire.Number, v uint64, data []byte) error {
		var err error
		switch num {
		case nodeKind:
			n.Kind, err = small[graph.NodeKind](v, math.MaxUint8)
		case nodeName:
			n.Name = string(data)
		case nodeDescriptor:
			n.Descriptor = string(data)
		case nodeOwner:
			n.Owner, err = nodeID(v)
		case nodeDeclared:
			n.Declared = protowire.DecodeBool(v)
		case nodeAccess:
			n.Access, err = small[uint16](v, math.MaxUint16)
		case nodeAnnotation:
			n.Annotations = append(n.Annotations, string(data))
		case nodeProgram:
			n.Program = protowire.DecodeBool(v)
		case nodeSuperclass:
			n.Superclass = string(data)
		case nodeInterface:
			n.Interfaces = append(n.Interfaces, string(data))
		case nodeSourcePath:
			n.Source.Path = string(data)
		case nodeSourceEntry:
			n.Source.Entry = string(data)
		case nodeSignatureType:
			n.SignatureTypes = append(n.SignatureTypes, string(data))
		case nodeMembers:
			for len(data) > 0 {
				m, k := protowire.ConsumeVarint(data)
				if k < 0 {
					return protowire.ParseError(k)
				}
				data = data[k:]
				id, err := nodeID(m)
				if err != nil {
					return err
				}
				n.Members = append(n.Members, id)
			}
		}
		return err
	})
	return n, err
}
