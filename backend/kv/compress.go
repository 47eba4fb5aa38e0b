package kv

import (
	"errors"

	"github.com/bkaradzic/go-lz4"
	"github.com/golang/snappy"
)

var (
	// ErrBadAlgo is returned on a unsupported/unknown algorithm.
	ErrBadAlgo = errors.New("invalid compression algorithm")
)

// AlgorithmType names a block compression algorithm.
type AlgorithmType string

const (
	// AlgoNone stores blocks as they are.
	AlgoNone = AlgorithmType("none")
	// AlgoSnappy is fast and the default.
	AlgoSnappy = AlgorithmType("snappy")
	// AlgoLZ4 compresses a little better than snappy.
	AlgoLZ4 = AlgorithmType("lz4")
)

// Algorithm is the common interface for all supported algorithms.
type Algorithm interface {
	Encode([]byte) ([]byte, error)
	Decode([]byte) ([]byte, error)
}

type noneAlgo struct{}
type snappyAlgo struct{}
type lz4Algo struct{}

var algoMap = map[AlgorithmType]Algorithm{
	AlgoNone:   noneAlgo{},
	AlgoSnappy: snappyAlgo{},
	AlgoLZ4:    lz4Algo{},
}

func (a noneAlgo) Encode(src []byte) ([]byte, error) {
	return src, nil
}

func (a noneAlgo) Decode(src []byte) ([]byte, error) {
	return src, nil
}

func (a snappyAlgo) Encode(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (a snappyAlgo) Decode(src []byte) ([]byte, error) {
	return snappy.Decode(nil, src)
}

func (a lz4Algo) Encode(src []byte) ([]byte, error) {
	return lz4.Encode(nil, src)
}

func (a lz4Algo) Decode(src []byte) ([]byte, error) {
	return lz4.Decode(nil, src)
}

// AlgorithmFromName returns the algorithm registered under `name`.
func AlgorithmFromName(name string) (Algorithm, error) {
	algo, ok := algoMap[AlgorithmType(name)]
	if !ok {
		return nil, ErrBadAlgo
	}

	return algo, nil
}

// ValidAlgorithms lists the names accepted by AlgorithmFromName.
func ValidAlgorithms() []string {
	return []string{string(AlgoNone), string(AlgoSnappy), string(AlgoLZ4)}
}
