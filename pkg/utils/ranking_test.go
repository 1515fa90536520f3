package utils

import "testing"

func TestTopKByScore(t *testing.T) {
	t.Parallel()

	items := []ScoredItem[string]{
		{Item: "aws-rds-postgres", Score: 0.52},
		{Item: "gcp-cloud-sql", Score: 0.91},
		{Item: "azure-cosmos", Score: 0.33},
		{Item: "aws-dynamodb", Score: 0.74},
		{Item: "gcp-firestore", Score: 0.12},
	}

	top := TopKByScore(items, 3)
	if len(top) != 3 {
		t.Fatalf("expected 3 items, got %d", len(top))
	}

	want := []string{"gcp-cloud-sql", "aws-dynamodb", "aws-rds-postgres"}
	for i, id := range want {
		if top[i].Item != id {
			t.Errorf("rank %d: expected %s, got %s (score %v)", i, id, top[i].Item, top[i].Score)
		}
	}

	// Input must not be reordered.
	if items[0].Item != "aws-rds-postgres" || items[4].Item != "gcp-firestore" {
		t.Error("input slice was mutated")
	}
}

func TestTopKByScoreKPastEnd(t *testing.T) {
	t.Parallel()

	items := []ScoredItem[int]{
		{Item: 1, Score: 0.2},
		{Item: 2, Score: 0.8},
	}

	top := TopKByScore(items, 10)
	if len(top) != 2 {
		t.Fatalf("expected all 2 items, got %d", len(top))
	}
	if top[0].Item != 2 || top[1].Item != 1 {
		t.Errorf("expected [2 1], got [%d %d]", top[0].Item, top[1].Item)
	}
}

func TestTopKByScoreDegenerate(t *testing.T) {
	t.Parallel()

	if got := TopKByScore([]ScoredItem[int]{{Item: 1, Score: 0.5}}, 0); got != nil {
		t.Errorf("k=0: expected nil, got %v", got)
	}
	if got := TopKByScore([]ScoredItem[int]{{Item: 1, Score: 0.5}}, -1); got != nil {
		t.Errorf("k<0: expected nil, got %v", got)
	}
	if got := TopKByScore[int](nil, 5); got != nil {
		t.Errorf("empty input: expected nil, got %v", got)
	}
}

func TestTopKByScoreStableTies(t *testing.T) {
	t.Parallel()

	// Equal scores keep input order, so an ID-ordered candidate list
	// cuts deterministically.
	items := []ScoredItem[string]{
		{Item: "aws-ec2-m5", Score: 0.5},
		{Item: "azure-vm-d4", Score: 0.5},
		{Item: "gcp-n2-standard", Score: 0.5},
	}

	top := TopKByScore(items, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 items, got %d", len(top))
	}
	if top[0].Item != "aws-ec2-m5" || top[1].Item != "azure-vm-d4" {
		t.Errorf("tie order not preserved: got [%s %s]", top[0].Item, top[1].Item)
	}
}

func BenchmarkTopKByScore(b *testing.B) {
	items := make([]ScoredItem[int], 5000)
	for i := range items {
		items[i] = ScoredItem[int]{Item: i, Score: float64((i * 37) % 1000)}
	}

	b.Run("k=10", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			TopKByScore(items, 10)
		}
	})
	b.Run("k=200", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			TopKByScore(items, 200)
		}
	})
}
