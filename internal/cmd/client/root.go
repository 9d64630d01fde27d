package client

// BaseURLFunc resolves the dispatch API base URL at call time, so a flag or
// environment override read after command construction still takes effect.
type BaseURLFunc func() string
