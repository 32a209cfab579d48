package db

import (
	"errors"
	"strconv"
)

// DistanceMetric used by FT.SEARCH vector similarity queries.
type DistanceMetric string

const (
	// DistanceCosine is cosine distance.
	DistanceCosine DistanceMetric = "COSINE"
	// DistanceL2 is Euclidean distance.
	DistanceL2 DistanceMetric = "L2"
)

// VectorAlgorithm selects the indexing algorithm for vector fields in FT.CREATE.
type VectorAlgorithm string

const (
	// VectorHNSW uses the HNSW algorithm.
	VectorHNSW VectorAlgorithm = "HNSW"
	// VectorFlat uses the FLAT (brute-force) algorithm.
	VectorFlat VectorAlgorithm = "FLAT"
)

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	// IndexFieldTag is a tag field.
	IndexFieldTag IndexFieldType = iota
	// IndexFieldNumeric is a numeric field.
	IndexFieldNumeric
	// IndexFieldVector is a vector field.
	IndexFieldVector
)

// IndexField describes one field in an FT index schema.
type IndexField struct {
	Name            string
	Type            IndexFieldType
	VectorDim       int
	VectorMetric    DistanceMetric
	VectorAlgo      VectorAlgorithm
	HNSWM           int
	HNSWEFConstruct int
}

// IndexDefinition describes an FT index over hash-stored documents.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// BuildCreateArgs translates an IndexDefinition into FT.CREATE arguments.
func BuildCreateArgs(idx *IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name, "ON", "HASH"}

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}

	return args, nil
}

func buildFieldArgs(f *IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	args := []string{f.Name}

	switch f.Type {
	case IndexFieldTag:
		args = append(args, "TAG")

	case IndexFieldNumeric:
		args = append(args, "NUMERIC")

	case IndexFieldVector:
		if f.VectorDim <= 0 {
			return nil, errors.New("vector dimension is required")
		}
		algo := f.VectorAlgo
		if algo == "" {
			algo = VectorHNSW
		}
		metric := f.VectorMetric
		if metric == "" {
			metric = DistanceCosine
		}

		params := []string{
			"TYPE", "FLOAT32",
			"DIM", strconv.Itoa(f.VectorDim),
			"DISTANCE_METRIC", string(metric),
		}
		if algo == VectorHNSW {
			if f.HNSWM > 0 {
				params = append(params, "M", strconv.Itoa(f.HNSWM))
			}
			if f.HNSWEFConstruct > 0 {
				params = append(params, "EF_CONSTRUCTION", strconv.Itoa(f.HNSWEFConstruct))
			}
		}

		args = append(args, "VECTOR", string(algo), strconv.Itoa(len(params)))
		args = append(args, params...)

	default:
		return nil, errors.New("unknown index field type")
	}

	return args, nil
}
