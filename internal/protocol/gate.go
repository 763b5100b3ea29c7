package protocol

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	dwnmodel "github.com/dwnode/dwnd/internal/model"
)

//go:embed model.conf
var modelConf string

// Subject names the two coarse parties a message can arrive as, ahead
// of any protocol-specific authorization.
type Subject string

const (
	// SubjectOwner is the DID that owns the DWN instance being addressed.
	SubjectOwner Subject = "owner"
	// SubjectOther is any other authenticated DID.
	SubjectOther Subject = "other"
)

// Gate is a coarse, API-method-level authorization check that runs
// ahead of the protocol engine's ancestor-walk: it answers "can this
// subject invoke this interface.method at all", not "on this specific
// record". The protocol engine still applies on top of a Gate pass.
type Gate struct {
	enforcer *casbin.Enforcer
}

// NewGate builds a Gate with the module's default policy: the owner
// may invoke every method; other subjects may invoke every Records
// method and Protocols.Query, but not Protocols.Configure. Whether a
// non-owner write or delete is admitted is decided after the gate, by
// the dispatcher's protocol rule check.
func NewGate() (*Gate, error) {
	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to load gate model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to create gate enforcer: %w", err)
	}

	gate := &Gate{enforcer: enforcer}

	if err := gate.seedDefaultPolicy(); err != nil {
		return nil, err
	}

	return gate, nil
}

func (g *Gate) seedDefaultPolicy() error {
	ownerMethods := []string{
		methodKey(dwnmodel.InterfaceRecords, dwnmodel.MethodWrite),
		methodKey(dwnmodel.InterfaceRecords, dwnmodel.MethodRead),
		methodKey(dwnmodel.InterfaceRecords, dwnmodel.MethodQuery),
		methodKey(dwnmodel.InterfaceRecords, dwnmodel.MethodDelete),
		methodKey(dwnmodel.InterfaceRecords, dwnmodel.MethodSync),
		methodKey(dwnmodel.InterfaceProtocols, dwnmodel.MethodConfigure),
		methodKey(dwnmodel.InterfaceProtocols, dwnmodel.MethodQuery),
	}

	otherMethods := []string{
		methodKey(dwnmodel.InterfaceRecords, dwnmodel.MethodRead),
		methodKey(dwnmodel.InterfaceRecords, dwnmodel.MethodQuery),
		methodKey(dwnmodel.InterfaceRecords, dwnmodel.MethodWrite),
		methodKey(dwnmodel.InterfaceRecords, dwnmodel.MethodDelete),
		methodKey(dwnmodel.InterfaceRecords, dwnmodel.MethodSync),
		methodKey(dwnmodel.InterfaceProtocols, dwnmodel.MethodQuery),
	}

	policies := make([][]string, 0, len(ownerMethods)+len(otherMethods))

	for _, method := range ownerMethods {
		policies = append(policies, []string{string(SubjectOwner), method})
	}

	for _, method := range otherMethods {
		policies = append(policies, []string{string(SubjectOther), method})
	}

	if _, err := g.enforcer.AddPolicies(policies); err != nil {
		return fmt.Errorf("protocol: failed to seed gate policy: %w", err)
	}

	return nil
}

// Allow reports whether subject may invoke interfaceName.methodName at all.
func (g *Gate) Allow(subject Subject, interfaceName, methodName string) (bool, error) {
	allowed, err := g.enforcer.Enforce(string(subject), methodKey(interfaceName, methodName))
	if err != nil {
		return false, fmt.Errorf("protocol: gate enforcement failed: %w", err)
	}

	return allowed, nil
}

func methodKey(interfaceName, methodName string) string {
	return interfaceName + "." + methodName
}
