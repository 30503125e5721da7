package compliance

import (
	"errors"

	"github.com/medequip/compliance/internal/config"
	"github.com/medequip/compliance/internal/models"
)

// Policy decides which dual controls a new discard record requires.
// Controlled waste and controlled disposal always need a witness and can
// never be exempted from approval; configuration only adds to that.
type Policy struct {
	witnessReasons map[models.ReasonCode]bool
	witnessMethods map[models.DisposalMethod]bool
	approvalExempt map[models.ReasonCode]bool
}

// DefaultPolicy returns the mandatory controlled-substance rules only.
func DefaultPolicy() *Policy {
	return &Policy{
		witnessReasons: map[models.ReasonCode]bool{models.ReasonControlledWaste: true},
		witnessMethods: map[models.DisposalMethod]bool{models.DisposalControlled: true},
		approvalExempt: map[models.ReasonCode]bool{},
	}
}

// NewPolicy extends the default policy with configured reasons and methods.
func NewPolicy(cfg config.PolicyConfig) (*Policy, error) {
	p := DefaultPolicy()
	var errs []error

	for _, s := range cfg.WitnessReasons {
		r, err := models.ParseReasonCode(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.witnessReasons[r] = true
	}

	for _, s := range cfg.WitnessMethods {
		m, err := models.ParseDisposalMethod(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.witnessMethods[m] = true
	}

	for _, s := range cfg.ApprovalExemptReasons {
		r, err := models.ParseReasonCode(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.approvalExempt[r] = true
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return p, nil
}

// Controls returns the controls fixed on a record at creation.
func (p *Policy) Controls(reason models.ReasonCode, method models.DisposalMethod) (requiresApproval, requiresWitness bool) {
	requiresWitness = p.witnessReasons[reason] || p.witnessMethods[method]
	requiresApproval = requiresWitness || !p.approvalExempt[reason]
	return requiresApproval, requiresWitness
}
