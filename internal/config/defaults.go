package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 50
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/insurepal.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "./data/bleve"
	}
	if cfg.Storage.VectorSnapshotPath == "" {
		cfg.Storage.VectorSnapshotPath = "./data/vectors.bin"
	}

	if cfg.Provider.Type == "" {
		cfg.Provider.Type = "openai"
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Provider.EmbeddingModel == "" {
		cfg.Provider.EmbeddingModel = "text-embedding-ada-002"
	}
	if cfg.Provider.ChatModel == "" {
		cfg.Provider.ChatModel = "gpt-3.5-turbo"
	}
	if cfg.Provider.Temperature == nil {
		t := DefaultTemperature
		cfg.Provider.Temperature = &t
	}
	if cfg.Provider.CacheSize == 0 {
		cfg.Provider.CacheSize = 10000
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "pinecone"
	}
	if cfg.VectorStore.IndexName == "" {
		cfg.VectorStore.IndexName = "insurepal-index"
	}
	if cfg.VectorStore.Dimension == 0 {
		cfg.VectorStore.Dimension = 1536
	}
	if cfg.VectorStore.Metric == "" {
		cfg.VectorStore.Metric = "cosine"
	}
	if cfg.VectorStore.Cloud == "" {
		cfg.VectorStore.Cloud = "aws"
	}
	if cfg.VectorStore.Region == "" {
		cfg.VectorStore.Region = "us-east-1"
	}
	if cfg.VectorStore.ControllerURL == "" {
		cfg.VectorStore.ControllerURL = "https://api.pinecone.io"
	}
	if cfg.VectorStore.Isolation == "" {
		cfg.VectorStore.Isolation = IsolationShared
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 2
	}
	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = 512
	}
	if cfg.Retrieval.ChunkOverlap == 0 {
		cfg.Retrieval.ChunkOverlap = 20
	}
	if cfg.Retrieval.KeywordWeight == 0 && cfg.Retrieval.SemanticWeight == 0 {
		cfg.Retrieval.KeywordWeight = 0.3
		cfg.Retrieval.SemanticWeight = 0.7
	}

	if cfg.Client.BackendURL == "" {
		cfg.Client.BackendURL = "http://localhost:8000"
	}
}
