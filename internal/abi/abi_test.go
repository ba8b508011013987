package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShimName(t *testing.T) {
	assert.Equal(t, "__wasm_add", ShimName("add"))
	assert.Equal(t, "__wasm_act", ShimName("act"))
}

func TestOperationFromShim(t *testing.T) {
	tests := []struct {
		name   string
		export string
		want   string
		ok     bool
	}{
		{name: "shim", export: "__wasm_add", want: "add", ok: true},
		{name: "snake case shim", export: "__wasm_get_name", want: "get_name", ok: true},
		{name: "buffer address export", export: ExportInputBufferAddress},
		{name: "buffer capacity export", export: ExportInputBufferCapacity},
		{name: "bare prefix", export: ShimPrefix},
		{name: "unrelated export", export: "memory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := OperationFromShim(tt.export)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShimParamCount(t *testing.T) {
	assert.Equal(t, 0, ShimParamCount(0))
	assert.Equal(t, 2, ShimParamCount(1))
	assert.Equal(t, 6, ShimParamCount(3))
}
