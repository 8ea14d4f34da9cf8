package tribe

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPolicy is returned when a policy update carries out-of-range values.
var ErrInvalidPolicy = errors.New("invalid policy")

// SharingPriority decides which family member absorbs the health penalty
// when a family cannot cover its upkeep.
type SharingPriority uint8

const (
	SharingElder SharingPriority = iota
	SharingChild
	SharingHunter
	SharingGatherer
	SharingYoungest
	SharingRandom
)

var sharingNames = [...]string{"ELDER", "CHILD", "HUNTER", "GATHERER", "YOUNGEST", "RANDOM"}

func (s SharingPriority) String() string {
	if int(s) < len(sharingNames) {
		return sharingNames[s]
	}
	return fmt.Sprintf("SharingPriority(%d)", s)
}

// ParseSharingPriority accepts priority names case-insensitively.
func ParseSharingPriority(s string) (SharingPriority, error) {
	for i, name := range sharingNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return SharingPriority(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown sharing priority %q", ErrInvalidPolicy, s)
}

func (s SharingPriority) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SharingPriority) UnmarshalText(b []byte) error {
	v, err := ParseSharingPriority(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Policy holds the tribe's economic rules.
type Policy struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	FoodTaxRate        int `json:"food_tax_rate"`  // Percent
	WaterTaxRate       int `json:"water_tax_rate"` // Percent
	HuntingIncentive   int `json:"hunting_incentive"`
	GatheringIncentive int `json:"gathering_incentive"`

	SharingPriority SharingPriority `json:"sharing_priority"`

	EnableCentralStorage  bool `json:"enable_central_storage"`
	CentralStorageTaxRate int  `json:"central_storage_tax_rate"` // Percent of gathered

	StorageDecayRate     float64 `json:"storage_decay_rate"`     // Fraction lost per decay
	StorageDecayInterval int     `json:"storage_decay_interval"` // Ticks; ≤ 0 disables
}

// DefaultPolicy is the policy a newly founded tribe starts with.
func DefaultPolicy() Policy {
	return Policy{
		Name:                  "Default Policy",
		Description:           "Balanced policy for tribe management",
		FoodTaxRate:           10,
		WaterTaxRate:          10,
		HuntingIncentive:      5,
		GatheringIncentive:    5,
		SharingPriority:       SharingElder,
		EnableCentralStorage:  false,
		CentralStorageTaxRate: 10,
		StorageDecayRate:      0.1,
		StorageDecayInterval:  20,
	}
}

// PolicyUpdate is a partial policy change. Nil fields leave the current
// value untouched.
type PolicyUpdate struct {
	Name                  *string          `json:"name,omitempty"`
	Description           *string          `json:"description,omitempty"`
	FoodTaxRate           *int             `json:"food_tax_rate,omitempty"`
	WaterTaxRate          *int             `json:"water_tax_rate,omitempty"`
	HuntingIncentive      *int             `json:"hunting_incentive,omitempty"`
	GatheringIncentive    *int             `json:"gathering_incentive,omitempty"`
	SharingPriority       *SharingPriority `json:"sharing_priority,omitempty"`
	EnableCentralStorage  *bool            `json:"enable_central_storage,omitempty"`
	CentralStorageTaxRate *int             `json:"central_storage_tax_rate,omitempty"`
	StorageDecayRate      *float64         `json:"storage_decay_rate,omitempty"`
	StorageDecayInterval  *int             `json:"storage_decay_interval,omitempty"`
}

// Validate checks the fields that are present.
func (u PolicyUpdate) Validate() error {
	percent := func(name string, v *int) error {
		if v != nil && (*v < 0 || *v > 100) {
			return fmt.Errorf("%w: %s %d outside 0–100", ErrInvalidPolicy, name, *v)
		}
		return nil
	}
	nonNegative := func(name string, v *int) error {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s %d is negative", ErrInvalidPolicy, name, *v)
		}
		return nil
	}

	for _, err := range []error{
		percent("food_tax_rate", u.FoodTaxRate),
		percent("water_tax_rate", u.WaterTaxRate),
		percent("central_storage_tax_rate", u.CentralStorageTaxRate),
		nonNegative("hunting_incentive", u.HuntingIncentive),
		nonNegative("gathering_incentive", u.GatheringIncentive),
	} {
		if err != nil {
			return err
		}
	}
	if u.StorageDecayRate != nil && (*u.StorageDecayRate < 0 || *u.StorageDecayRate > 1) {
		return fmt.Errorf("%w: storage_decay_rate %v outside 0–1", ErrInvalidPolicy, *u.StorageDecayRate)
	}
	if u.SharingPriority != nil && int(*u.SharingPriority) >= len(sharingNames) {
		return fmt.Errorf("%w: sharing priority %d", ErrInvalidPolicy, *u.SharingPriority)
	}
	return nil
}

// Apply overwrites the fields of p that are set in u.
func (u PolicyUpdate) Apply(p *Policy) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.FoodTaxRate != nil {
		p.FoodTaxRate = *u.FoodTaxRate
	}
	if u.WaterTaxRate != nil {
		p.WaterTaxRate = *u.WaterTaxRate
	}
	if u.HuntingIncentive != nil {
		p.HuntingIncentive = *u.HuntingIncentive
	}
	if u.GatheringIncentive != nil {
		p.GatheringIncentive = *u.GatheringIncentive
	}
	if u.SharingPriority != nil {
		p.SharingPriority = *u.SharingPriority
	}
	if u.EnableCentralStorage != nil {
		p.EnableCentralStorage = *u.EnableCentralStorage
	}
	if u.CentralStorageTaxRate != nil {
		p.CentralStorageTaxRate = *u.CentralStorageTaxRate
	}
	if u.StorageDecayRate != nil {
		p.StorageDecayRate = *u.StorageDecayRate
	}
	if u.StorageDecayInterval != nil {
		p.StorageDecayInterval = *u.StorageDecayInterval
	}
}

// IsEmpty reports whether the update changes nothing.
func (u PolicyUpdate) IsEmpty() bool {
	return u == PolicyUpdate{}
}

// ApplyPolicyUpdate validates u and applies it to the tribe's policy.
// Enabling central storage on a tribe without a pool creates an empty one.
func (t *Tribe) ApplyPolicyUpdate(u PolicyUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	u.Apply(&t.Policy)
	if t.Policy.EnableCentralStorage && t.Central == nil {
		t.Central = &Resources{}
	}
	return nil
}
