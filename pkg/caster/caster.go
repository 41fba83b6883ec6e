package caster

import "encoding/json"

// ChannelCaster converts values to and from their wire representation.
type ChannelCaster[T any] interface {
	From([]byte) (T, error)
	To(T) ([]byte, error)
}

// JSONChannelCaster encodes as JSON. Indent produces a human readable document,
// used for downloadable exports.
type JSONChannelCaster[T any] struct {
	Indent bool
}

func (jc JSONChannelCaster[T]) From(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

func (jc JSONChannelCaster[T]) To(v T) ([]byte, error) {
	if jc.Indent {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
