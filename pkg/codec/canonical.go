package codec

import (
	"reflect"
	"sort"

	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// msgpack's SetSortMapKeys only covers a few string-keyed map types, so every
// map the containers hold gets an explicit sorted encoder. Decoding keeps the
// library defaults.
func init() {
	for _, v := range []any{
		map[string]int(nil),
		map[string]domain.Value(nil),
		map[int][]int(nil),
		map[int]int(nil),
	} {
		msgpack.Register(v, encodeSortedMap, nil)
	}
}

func encodeSortedMap(enc *msgpack.Encoder, v reflect.Value) error {
	if v.IsNil() {
		return enc.EncodeNil()
	}
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		switch keys[i].Kind() {
		case reflect.String:
			return keys[i].String() < keys[j].String()
		default:
			return keys[i].Int() < keys[j].Int()
		}
	})
	if err := enc.EncodeMapLen(len(keys)); err != nil {
		return err
	}
	for _, k := range keys {
		if err := enc.EncodeValue(k); err != nil {
			return err
		}
		if err := enc.EncodeValue(v.MapIndex(k)); err != nil {
			return err
		}
	}
	return nil
}
