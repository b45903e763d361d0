package backend

// Plan is the reconciliation decision derived from a probe. It parameterizes
// the Terraform apply: when CreateBackend is true the templates instantiate
// the bucket and lock table (conditional count 1), otherwise they leave the
// existing backend untouched.
type Plan struct {
	CreateBackend bool `json:"create_backend"`
}

// Reconcile maps the observed backend state to the minimal action. Pure
// function, no side effects: the backend is created exactly when it does not
// already exist.
func Reconcile(state State) Plan {
	return Plan{CreateBackend: !state.Exists}
}
