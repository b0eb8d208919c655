package core

import (
	"errors"
	"fmt"
	"strings"
)

// DataspaceType represents the type of dataspace.
type DataspaceType uint8

// Dataspace type constants define the dimensionality of datasets.
const (
	DataspaceScalar DataspaceType = 0 // Scalar (single value).
	DataspaceSimple DataspaceType = 1 // Simple (N-dimensional array).
	DataspaceNull   DataspaceType = 2 // Null (no data).
)

// Unlimited is the maximum-dimension value of an extendible axis.
const Unlimited = ^uint64(0)

// DataspaceMessage represents HDF5 dataspace message.
// Scalar dataspaces have no dimensions.
type DataspaceMessage struct {
	Version    uint8
	Type       DataspaceType
	Dimensions []uint64
	MaxDims    []uint64 // nil unless stored.
}

// ParseDataspaceMessage parses a dataspace message. Dimension sizes use the
// superblock length width.
func ParseDataspaceMessage(data []byte, sb *Superblock) (*DataspaceMessage, error) {
	if len(data) < 4 {
		return nil, errors.New("dataspace message too short")
	}

	ds := &DataspaceMessage{Version: data[0]}
	rank := int(data[1])
	flags := data[2]

	var pos int
	switch ds.Version {
	case 1:
		// version(1) rank(1) flags(1) reserved(5)
		pos = 8
		ds.Type = DataspaceSimple
		if rank == 0 {
			ds.Type = DataspaceScalar
		}
	case 2:
		// version(1) rank(1) flags(1) type(1)
		pos = 4
		ds.Type = DataspaceType(data[3])
		if ds.Type > DataspaceNull {
			return nil, fmt.Errorf("invalid dataspace type: %d", ds.Type)
		}
	default:
		return nil, fmt.Errorf("unsupported dataspace version: %d", ds.Version)
	}

	l := int(sb.LengthSize)
	count := rank
	if flags&0x01 != 0 {
		count *= 2
	}
	if len(data) < pos+count*l {
		return nil, fmt.Errorf("dataspace message too short: %d bytes, need %d", len(data), pos+count*l)
	}

	ds.Dimensions = make([]uint64, rank)
	for i := range ds.Dimensions {
		ds.Dimensions[i] = sb.DecodeLength(data[pos:])
		pos += l
	}
	if flags&0x01 != 0 {
		ds.MaxDims = make([]uint64, rank)
		for i := range ds.MaxDims {
			ds.MaxDims[i] = sb.DecodeLength(data[pos:])
			pos += l
		}
	}
	return ds, nil
}

// TotalElements calculates total number of elements in dataspace.
func (ds *DataspaceMessage) TotalElements() uint64 {
	if ds.Type == DataspaceNull {
		return 0
	}
	total := uint64(1)
	for _, d := range ds.Dimensions {
		total *= d
	}
	return total
}

// IsScalar returns true if the dataspace holds a single value.
func (ds *DataspaceMessage) IsScalar() bool {
	return ds.Type == DataspaceScalar
}

// String returns human-readable dataspace description.
func (ds *DataspaceMessage) String() string {
	switch ds.Type {
	case DataspaceScalar:
		return "scalar"
	case DataspaceNull:
		return "null"
	}
	parts := make([]string, len(ds.Dimensions))
	for i, d := range ds.Dimensions {
		parts[i] = fmt.Sprint(d)
		if ds.MaxDims != nil && ds.MaxDims[i] != d {
			if ds.MaxDims[i] == Unlimited {
				parts[i] += "/inf"
			} else {
				parts[i] += fmt.Sprintf("/%d", ds.MaxDims[i])
			}
		}
	}
	return "simple [" + strings.Join(parts, " x ") + "]"
}
