package registry

// Service is a long-running component with a managed lifecycle.
type Service interface {
	Start() error
	Stop() error
}
