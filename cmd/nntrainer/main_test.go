package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusters(t *testing.T) {
	inputs, labels := clusters(64, 5, 3, 42)
	require.Len(t, inputs, 64)
	require.Len(t, labels, 64)
	for i := range inputs {
		assert.Len(t, inputs[i], 5)
		require.Len(t, labels[i], 3)
		var sum float32
		for _, v := range labels[i] {
			sum += v
		}
		assert.Equal(t, float32(1), sum, "label %d is not one-hot", i)
	}

	again, _ := clusters(64, 5, 3, 42)
	assert.Equal(t, inputs, again, "same seed, same samples")
}

func TestUploadArtifacts(t *testing.T) {
	work := t.TempDir()
	store := filepath.Join(t.TempDir(), "store")
	weights := filepath.Join(work, "model.bin")
	require.NoError(t, os.WriteFile(weights, []byte("abc"), 0o600))

	require.NoError(t, uploadArtifacts(context.Background(), store, weights, "", ""))
	_, err := os.Stat(filepath.Join(store, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"))
	assert.NoError(t, err)

	assert.Error(t, uploadArtifacts(context.Background(), store, filepath.Join(work, "missing")))
	assert.Error(t, uploadArtifacts(context.Background(), "gs://"))
}
