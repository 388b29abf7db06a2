package ports

import "net/http"

// HTTPClient abstracts HTTP operations so generators can be tested without a
// network. The standard *http.Client satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
