package domain

// Batch is an ordered group of span texts rewritten in a single generator call.
// Index is zero-based and stable for a given input and batch size.
type Batch struct {
	Index int
	Texts []string
}

// Size returns the number of texts in the batch.
func (b Batch) Size() int {
	return len(b.Texts)
}
