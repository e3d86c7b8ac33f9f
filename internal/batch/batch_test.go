package batch

import "testing"

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		size     int
		wantLens []int
	}{
		{"even split", []string{"a", "b", "c", "d"}, 2, []int{2, 2}},
		{"short tail", []string{"a", "b", "c", "d", "e"}, 2, []int{2, 2, 1}},
		{"single batch", []string{"a", "b"}, 100, []int{2}},
		{"size one", []string{"a", "b", "c"}, 1, []int{1, 1, 1}},
		{"empty input", nil, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split(tt.keys, tt.size)
			if err != nil {
				t.Fatalf("Split: %v", err)
			}
			if len(chunks) != len(tt.wantLens) {
				t.Fatalf("chunks = %d, want %d", len(chunks), len(tt.wantLens))
			}
			for i, want := range tt.wantLens {
				if len(chunks[i]) != want {
					t.Errorf("chunk %d len = %d, want %d", i, len(chunks[i]), want)
				}
			}
		})
	}
}

func TestSplitPreservesOrder(t *testing.T) {
	keys := []string{"Asthma", "Cholera", "Diabetes", "Ebola", "Fever"}
	chunks, err := Split(keys, 2)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	var flat []string
	for _, c := range chunks {
		flat = append(flat, c...)
	}
	if len(flat) != len(keys) {
		t.Fatalf("flattened len = %d, want %d", len(flat), len(keys))
	}
	for i := range keys {
		if flat[i] != keys[i] {
			t.Errorf("key %d = %q, want %q", i, flat[i], keys[i])
		}
	}
}

func TestSplitRejectsBadSize(t *testing.T) {
	if _, err := Split([]string{"a"}, 0); err == nil {
		t.Error("size 0 should be rejected")
	}
	if _, err := Split([]string{"a"}, -5); err == nil {
		t.Error("negative size should be rejected")
	}
}
