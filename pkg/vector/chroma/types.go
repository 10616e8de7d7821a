package chroma

type chromaCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type chromaCreateRequest struct {
	Name        string         `json:"name"`
	GetOrCreate bool           `json:"get_or_create"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type chromaAddRequest struct {
	IDs        []string            `json:"ids"`
	Embeddings [][]float32         `json:"embeddings"`
	Metadatas  []map[string]string `json:"metadatas,omitempty"`
	Documents  []string            `json:"documents,omitempty"`
}

type chromaQueryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include"`
}

// Query responses are grouped per query embedding; only one is ever sent.
type chromaQueryResponse struct {
	IDs       [][]string            `json:"ids"`
	Documents [][]*string           `json:"documents"`
	Metadatas [][]map[string]string `json:"metadatas"`
	Distances [][]float32           `json:"distances"`
}

type chromaGetRequest struct {
	IDs     []string       `json:"ids,omitempty"`
	Where   map[string]any `json:"where,omitempty"`
	Include []string       `json:"include"`
}

type chromaGetResponse struct {
	IDs       []string            `json:"ids"`
	Documents []*string           `json:"documents"`
	Metadatas []map[string]string `json:"metadatas"`
}

type chromaDeleteRequest struct {
	IDs []string `json:"ids"`
}
