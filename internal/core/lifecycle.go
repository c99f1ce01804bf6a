package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable modules receive their raw YAML section before Provision.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules apply defaults, open handles and publish services
// on the AppContext.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their configuration after Provision.
// Validate must not have side effects.
type Validator interface {
	Validate() error
}

// Starter modules start background work once every module is provisioned.
type Starter interface {
	Start() error
}

// Stopper modules release resources. Stop runs in reverse start order.
type Stopper interface {
	Stop(ctx context.Context) error
}
