package rag

// ConsentChecker reports whether a project's owner has agreed to use
// its scraped content for retrieval.
type ConsentChecker interface {
	RagEnabled(projectID string) bool
}

// Retriever combines the corpus with the consent gate. All filtering
// happens here so callers never see content from a non-consented
// project.
type Retriever struct {
	corpus  *Corpus
	consent ConsentChecker
}

// NewRetriever creates a Retriever over corpus gated by consent.
func NewRetriever(corpus *Corpus, consent ConsentChecker) *Retriever {
	return &Retriever{corpus: corpus, consent: consent}
}

// Retrieve returns up to topK snippets relevant to query from the
// project's corpus, best match first. It returns nil when consent is
// not granted, even if the corpus holds content for the project.
func (r *Retriever) Retrieve(projectID, query string, topK int) []Snippet {
	if !r.consent.RagEnabled(projectID) {
		return nil
	}
	return r.corpus.search(projectID, query, topK)
}
