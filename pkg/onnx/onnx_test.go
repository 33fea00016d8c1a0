package onnx

import (
	"testing"
)

func TestNewEnv(t *testing.T) {
	env, err := NewEnv("test")
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close()
	t.Log("created ONNX Runtime environment")
}

func TestNewTensor(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	tensor, err := NewTensor([]int64{2, 3}, data)
	if err != nil {
		t.Fatal(err)
	}
	defer tensor.Close()

	shape, err := tensor.Shape()
	if err != nil {
		t.Fatal(err)
	}
	if len(shape) != 2 || shape[0] != 2 || shape[1] != 3 {
		t.Errorf("shape = %v, want [2,3]", shape)
	}

	out, err := tensor.FloatData()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 6 {
		t.Fatalf("len = %d, want 6", len(out))
	}
	for i, v := range out {
		if v != data[i] {
			t.Errorf("[%d] = %f, want %f", i, v, data[i])
		}
	}
}

func TestTensorEmptyData(t *testing.T) {
	_, err := NewTensor([]int64{0}, nil)
	if err == nil {
		t.Error("expected error for empty data")
	}
}

func TestTensorShortData(t *testing.T) {
	_, err := NewTensor([]int64{2, 3}, []float32{1, 2, 3})
	if err == nil {
		t.Error("expected error for short data")
	}
}

func TestEnvDoubleClose(t *testing.T) {
	env, err := NewEnv("test")
	if err != nil {
		t.Fatal(err)
	}
	env.Close()
	env.Close()
}

func TestSessionFromMissingFile(t *testing.T) {
	env, err := NewEnv("test")
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close()

	_, err = env.NewSessionFromFile("/nonexistent/model.onnx")
	if err == nil {
		t.Error("expected error for missing model file")
	}
}
