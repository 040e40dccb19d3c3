package export

import "testing"

func TestFromReplica_SplitsRowMajorBufferPerCabinet(t *testing.T) {
	// 2 cabinets, 3 subjects each.
	mu := []float64{1, 2, 3, 4, 5, 6}
	centroids := FromReplica(mu, 2, 3)

	if len(centroids) != 2 {
		t.Fatalf("expected 2 centroids, got %d", len(centroids))
	}

	want0 := []float32{1, 2, 3}
	for i, v := range centroids[0].Values {
		if v != want0[i] {
			t.Errorf("centroid 0 value %d = %v, want %v", i, v, want0[i])
		}
	}
	want1 := []float32{4, 5, 6}
	for i, v := range centroids[1].Values {
		if v != want1[i] {
			t.Errorf("centroid 1 value %d = %v, want %v", i, v, want1[i])
		}
	}
}

func TestFromReplica_IDAndMetadataCarryCabinetIndex(t *testing.T) {
	mu := []float64{0, 0}
	centroids := FromReplica(mu, 2, 1)

	if centroids[0].ID != "cabinet-0" || centroids[1].ID != "cabinet-1" {
		t.Errorf("expected IDs cabinet-0/cabinet-1, got %q/%q", centroids[0].ID, centroids[1].ID)
	}
	if centroids[0].Metadata["cabinet"] != 0 || centroids[1].Metadata["cabinet"] != 1 {
		t.Errorf("expected metadata cabinet index to match position, got %v/%v",
			centroids[0].Metadata["cabinet"], centroids[1].Metadata["cabinet"])
	}
}

func TestFromReplica_EmptyWhenZeroCabinets(t *testing.T) {
	centroids := FromReplica(nil, 0, 0)
	if len(centroids) != 0 {
		t.Errorf("expected no centroids for 0 cabinets, got %d", len(centroids))
	}
}
