package beneficiary

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pmajay/core"
)

// Social categories
const (
	CategorySC      = "SC"
	CategoryST      = "ST"
	CategoryGeneral = "General"
	CategoryOBC     = "OBC"
)

// Verification statuses
const (
	VerificationPending  = "Pending"
	VerificationVerified = "Verified"
	VerificationRejected = "Rejected"
)

// Benefit statuses
const (
	BenefitPending   = "Pending"
	BenefitApproved  = "Approved"
	BenefitDisbursed = "Disbursed"
)

type (
	Contact struct {
		Phone string `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,phone"`
		Email string `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	}

	Address struct {
		Line    string `json:"line,omitempty" bson:"line,omitempty"`
		Village string `json:"village,omitempty" bson:"village,omitempty"`
		Pincode string `json:"pincode,omitempty" bson:"pincode,omitempty" validate:"omitempty,pincode"`
	}

	PersonalInfo struct {
		Name          string  `json:"name" bson:"name" validate:"required,notblank"`
		FatherName    string  `json:"father_name,omitempty" bson:"father_name,omitempty"`
		AadhaarNumber string  `json:"aadhaar_number" bson:"aadhaar_number" validate:"required,aadhaar"`
		Category      string  `json:"category" bson:"category" validate:"required,oneof=SC ST General OBC"`
		Gender        string  `json:"gender" bson:"gender" validate:"required,oneof=Male Female Other"`
		Age           int     `json:"age" bson:"age" validate:"gte=0,lte=120"`
		Contact       Contact `json:"contact" bson:"contact"`
		Address       Address `json:"address" bson:"address"`
	}

	EligibilityCriteria struct {
		IncomeLevel      float64 `json:"income_level" bson:"income_level" validate:"gte=0"`
		LandHolding      float64 `json:"land_holding" bson:"land_holding" validate:"gte=0"`
		BPLCard          bool    `json:"bpl_card" bson:"bpl_card"`
		DisabilityStatus bool    `json:"disability_status" bson:"disability_status"`
	}

	Benefit struct {
		Type   string    `json:"type" bson:"type" validate:"required,notblank"`
		Amount float64   `json:"amount" bson:"amount" validate:"gte=0"`
		Date   time.Time `json:"date" bson:"date"`
		Status string    `json:"status" bson:"status" validate:"omitempty,oneof=Pending Approved Disbursed"`
	}

	Beneficiary struct {
		ID                  string              `json:"id" bson:"_id"`
		BeneficiaryID       string              `json:"beneficiary_id" bson:"beneficiary_id"`
		ProjectID           string              `json:"project_id" bson:"project_id"`
		PersonalInfo        PersonalInfo        `json:"personal_info" bson:"personal_info"`
		EligibilityCriteria EligibilityCriteria `json:"eligibility_criteria" bson:"eligibility_criteria"`
		BenefitsReceived    []Benefit           `json:"benefits_received" bson:"benefits_received"`
		VerificationStatus  string              `json:"verification_status" bson:"verification_status"`
		VerifiedBy          string              `json:"verified_by,omitempty" bson:"verified_by,omitempty"`
		VerificationDate    *time.Time          `json:"verification_date" bson:"verification_date,omitempty"`
		Remarks             string              `json:"remarks,omitempty" bson:"remarks,omitempty"`
		CreatedBy           string              `json:"created_by" bson:"created_by"`
		CreatedAt           time.Time           `json:"created_at" bson:"created_at"`
		UpdatedAt           time.Time           `json:"updated_at" bson:"updated_at"`
	}
)

// HasDisbursed reports whether any benefit has been paid out.
func (b Beneficiary) HasDisbursed() bool {
	for _, bn := range b.BenefitsReceived {
		if bn.Status == BenefitDisbursed {
			return true
		}
	}
	return false
}

// TotalDisbursed sums the disbursed benefit amounts.
func (b Beneficiary) TotalDisbursed() float64 {
	var total float64
	for _, bn := range b.BenefitsReceived {
		if bn.Status == BenefitDisbursed {
			total += bn.Amount
		}
	}
	return total
}

// NewBeneficiary contains information needed to register a new Beneficiary.
type NewBeneficiary struct {
	BeneficiaryID       string              `json:"beneficiary_id" validate:"required,max=32"`
	ProjectID           string              `json:"project_id" validate:"required"`
	PersonalInfo        PersonalInfo        `json:"personal_info"`
	EligibilityCriteria EligibilityCriteria `json:"eligibility_criteria"`
}

func (nb *NewBeneficiary) Validate(validate *validator.Validate) error {
	nb.BeneficiaryID = core.CleanString(nb.BeneficiaryID)
	nb.ProjectID = core.CleanString(nb.ProjectID)
	nb.PersonalInfo.clean()
	return validate.Struct(nb)
}

func (pi *PersonalInfo) clean() {
	pi.Name = core.CleanString(pi.Name)
	pi.FatherName = core.CleanString(pi.FatherName)
	pi.AadhaarNumber = core.CleanString(pi.AadhaarNumber)
	pi.Contact.Email = core.CleanString(pi.Contact.Email, true)
	pi.Contact.Phone = core.CleanString(pi.Contact.Phone)
	pi.Address.Line = core.CleanString(pi.Address.Line)
	pi.Address.Village = core.CleanString(pi.Address.Village)
	pi.Address.Pincode = core.CleanString(pi.Address.Pincode)
}

// UpdateBeneficiary defines what information may be provided to modify an existing Beneficiary.
// Benefits and verification have their own operations.
type UpdateBeneficiary struct {
	PersonalInfo        *PersonalInfo        `json:"personal_info"`
	EligibilityCriteria *EligibilityCriteria `json:"eligibility_criteria"`
	Remarks             *string              `json:"remarks"`
}

func (ub *UpdateBeneficiary) Validate(validate *validator.Validate) error {
	if ub.PersonalInfo != nil {
		ub.PersonalInfo.clean()
	}
	return validate.Struct(ub)
}

func (ub UpdateBeneficiary) apply(b Beneficiary) Beneficiary {
	if ub.PersonalInfo != nil {
		b.PersonalInfo = *ub.PersonalInfo
	}
	if ub.EligibilityCriteria != nil {
		b.EligibilityCriteria = *ub.EligibilityCriteria
	}
	if ub.Remarks != nil {
		b.Remarks = core.CleanString(*ub.Remarks)
	}
	return b
}

type Verification struct {
	Status  string `json:"status" validate:"required,oneof=Verified Rejected"`
	Remarks string `json:"remarks"`
}

func (v *Verification) Validate(validate *validator.Validate) error {
	return validate.Struct(v)
}

type NewBenefit Benefit

func (nb *NewBenefit) Validate(validate *validator.Validate) error {
	nb.Type = core.CleanString(nb.Type)
	if nb.Status == "" {
		nb.Status = BenefitPending
	}
	return validate.Struct(nb)
}

type QueryFilter struct {
	ProjectID          string `query:"project_id"`
	VerificationStatus string `query:"verification_status"`
	Category           string `query:"category"`
	Search             string `query:"search"`

	// set by the services
	ProjectIDs []string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.ProjectID = core.CleanString(qf.ProjectID)
	qf.VerificationStatus = core.CleanString(qf.VerificationStatus)
	qf.Category = core.CleanString(qf.Category)
	qf.Search = core.CleanString(qf.Search)
}

// Matches is used by in-memory repositories.
func (qf QueryFilter) Matches(b Beneficiary) bool {
	if qf.ProjectID != "" && qf.ProjectID != b.ProjectID {
		return false
	}
	if qf.ProjectIDs != nil && !core.ContainsString(qf.ProjectIDs, b.ProjectID) {
		return false
	}
	if qf.VerificationStatus != "" && qf.VerificationStatus != b.VerificationStatus {
		return false
	}
	if qf.Category != "" && qf.Category != b.PersonalInfo.Category {
		return false
	}
	return qf.Search == "" ||
		core.ContainsFold(b.PersonalInfo.Name, qf.Search) ||
		core.ContainsFold(b.BeneficiaryID, qf.Search)
}
