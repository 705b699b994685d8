package kekconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name     string
		cocoHard bool
		want     Format
	}{
		{"darknet", false, FormatDarknet},
		{"PascalVOC", false, FormatPascalVOC},
		{"mscoco", false, FormatCOCOSimple},
		{"mscoco", true, FormatCOCOHard},
		{"tfrecord", false, FormatTFRecord},
	}
	for _, tt := range tests {
		f, err := ParseFormat(tt.name, tt.cocoHard)
		require.NoError(t, err)
		assert.Equal(t, tt.want, f)
	}

	_, err := ParseFormat("kitti", false)
	assert.Error(t, err)
}

func TestFormatProperties(t *testing.T) {
	assert.Equal(t, ".txt", FormatDarknet.Ext())
	assert.Equal(t, ".xml", FormatPascalVOC.Ext())
	assert.Equal(t, ".json", FormatCOCOSimple.Ext())
	assert.Equal(t, "", FormatTFRecord.Ext())

	assert.True(t, FormatDarknet.PerFile())
	assert.True(t, FormatCOCOSimple.PerFile())
	assert.False(t, FormatCOCOHard.PerFile())
	assert.False(t, FormatTFRecord.PerFile())
}

func TestFormatCodec(t *testing.T) {
	for _, f := range []Format{FormatDarknet, FormatPascalVOC, FormatCOCOSimple, FormatCOCOHard} {
		codec, err := f.Codec()
		require.NoError(t, err)
		assert.NotNil(t, codec)
	}

	_, err := FormatTFRecord.Codec()
	assert.Error(t, err)
}

func TestDarknetCodecRequiresClassMapper(t *testing.T) {
	codec, err := FormatDarknet.Codec()
	require.NoError(t, err)

	_, err = codec.Decode("frame.png", 0, &Env{})
	assert.Error(t, err)
}
