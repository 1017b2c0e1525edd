package beneficiary_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/beneficiary"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
	"github.com/trezcool/pmajay/testutil"
)

type fixture struct {
	env                  *testutil.Env
	project              project.Project
	collector, gramPanch user.User
	otherGP, contractor  user.User
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv()
	cuttack := testutil.Loc("Odisha", "Cuttack", "Athagarh")
	f := fixture{env: env}
	f.collector = testutil.CreateUser(t, env.Users, "Cuttack Collector", "dc@cuttack.gov.in", "", user.RoleDistrictCollector, cuttack)
	f.gramPanch = testutil.CreateUser(t, env.Users, "Athagarh GP", "gp@athagarh.in", "", user.RoleGramPanchayatUser, cuttack)
	f.otherGP = testutil.CreateUser(t, env.Users, "Banki GP", "gp@banki.in", "", user.RoleGramPanchayatUser, testutil.Loc("Odisha", "Cuttack", "Banki"))
	f.contractor = testutil.CreateUser(t, env.Users, "Builder", "ops@builder.in", "", user.RoleContractorVendor, core.Location{})
	f.project = testutil.CreateProject(t, env.Projects, f.collector, "PMAJAY-OD-001", cuttack, 1000000)
	return f
}

func newBeneficiary(projectID, beneficiaryID, aadhaar string) beneficiary.NewBeneficiary {
	return beneficiary.NewBeneficiary{
		BeneficiaryID: beneficiaryID,
		ProjectID:     projectID,
		PersonalInfo: beneficiary.PersonalInfo{
			Name:          "Sunita Behera",
			AadhaarNumber: aadhaar,
			Category:      beneficiary.CategorySC,
			Gender:        "Female",
			Age:           41,
		},
	}
}

func TestNewBeneficiary_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(nb *beneficiary.NewBeneficiary)
		wantErr bool
	}{
		{name: "valid", modify: func(nb *beneficiary.NewBeneficiary) {}},
		{name: "short aadhaar", modify: func(nb *beneficiary.NewBeneficiary) { nb.PersonalInfo.AadhaarNumber = "12345" }, wantErr: true},
		{name: "padded aadhaar is cleaned", modify: func(nb *beneficiary.NewBeneficiary) { nb.PersonalInfo.AadhaarNumber = " 123412341234 " }},
		{name: "bad category", modify: func(nb *beneficiary.NewBeneficiary) { nb.PersonalInfo.Category = "XYZ" }, wantErr: true},
		{name: "bad phone", modify: func(nb *beneficiary.NewBeneficiary) { nb.PersonalInfo.Contact.Phone = "12345" }, wantErr: true},
		{name: "valid phone", modify: func(nb *beneficiary.NewBeneficiary) { nb.PersonalInfo.Contact.Phone = "+919876543210" }},
		{name: "bad pincode", modify: func(nb *beneficiary.NewBeneficiary) { nb.PersonalInfo.Address.Pincode = "7540" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nb := newBeneficiary("p1", "B1", "123412341234")
			tt.modify(&nb)
			err := nb.Validate(testutil.Validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b, err := f.env.BeneficiarySvc.Create(ctx, f.gramPanch, newBeneficiary(f.project.ID, "B1", "123412341234"))
	require.NoError(t, err)
	assert.Equal(t, beneficiary.VerificationPending, b.VerificationStatus)
	assert.Equal(t, []beneficiary.Benefit{}, b.BenefitsReceived)

	tests := []struct {
		name  string
		actor user.User
		nb    beneficiary.NewBeneficiary
		check func(error) bool
	}{
		{name: "same aadhaar", actor: f.gramPanch, nb: newBeneficiary(f.project.ID, "B2", "123412341234"), check: core.IsConflict},
		{name: "same beneficiary id", actor: f.gramPanch, nb: newBeneficiary(f.project.ID, "B1", "999912341234"), check: core.IsConflict},
		{name: "other village", actor: f.otherGP, nb: newBeneficiary(f.project.ID, "B3", "555512341234"), check: core.IsForbidden},
		{name: "contractor", actor: f.contractor, nb: newBeneficiary(f.project.ID, "B3", "555512341234"), check: core.IsForbidden},
		{name: "unknown project", actor: f.gramPanch, nb: newBeneficiary("nope", "B3", "555512341234"), check: core.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.env.BeneficiarySvc.Create(ctx, tt.actor, tt.nb)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestService_VerifyAndAddBenefit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := testutil.CreateBeneficiary(t, f.env.Beneficiaries, f.project, "B1", "Sunita Behera", "123412341234")
	benefit := beneficiary.NewBenefit{Type: "Housing grant", Amount: 120000, Status: beneficiary.BenefitDisbursed}

	_, err := f.env.BeneficiarySvc.AddBenefit(ctx, f.collector, b.ID, benefit)
	assert.True(t, core.IsStateError(err), "unverified beneficiaries receive nothing")

	_, err = f.env.BeneficiarySvc.Verify(ctx, f.gramPanch, b.ID, beneficiary.Verification{Status: beneficiary.VerificationVerified})
	assert.True(t, core.IsForbidden(err), "gram panchayats cannot verify")

	got, err := f.env.BeneficiarySvc.Verify(ctx, f.collector, b.ID, beneficiary.Verification{Status: beneficiary.VerificationVerified, Remarks: "documents checked"})
	require.NoError(t, err)
	assert.Equal(t, beneficiary.VerificationVerified, got.VerificationStatus)
	assert.Equal(t, f.collector.ID, got.VerifiedBy)
	assert.NotNil(t, got.VerificationDate)

	_, err = f.env.BeneficiarySvc.Verify(ctx, f.collector, b.ID, beneficiary.Verification{Status: beneficiary.VerificationRejected})
	assert.True(t, core.IsStateError(err), "verification happens once")

	got, err = f.env.BeneficiarySvc.AddBenefit(ctx, f.gramPanch, b.ID, benefit)
	require.NoError(t, err)
	require.Len(t, got.BenefitsReceived, 1)
	assert.False(t, got.BenefitsReceived[0].Date.IsZero())
	assert.True(t, got.HasDisbursed())
	assert.Equal(t, float64(120000), got.TotalDisbursed())

	err = f.env.BeneficiarySvc.Delete(ctx, f.collector, b.ID)
	assert.True(t, core.IsConflict(err), "disbursed beneficiaries are kept: %v", err)
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := testutil.CreateBeneficiary(t, f.env.Beneficiaries, f.project, "B1", "Sunita Behera", "123412341234")

	err := f.env.BeneficiarySvc.Delete(ctx, f.gramPanch, b.ID)
	assert.True(t, core.IsForbidden(err))

	require.NoError(t, f.env.BeneficiarySvc.Delete(ctx, f.collector, b.ID))
	_, err = f.env.BeneficiarySvc.Get(ctx, f.collector, b.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_Query(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	banki := testutil.CreateProject(t, f.env.Projects, f.collector, "PMAJAY-OD-002", testutil.Loc("Odisha", "Cuttack", "Banki"), 500000)
	testutil.CreateBeneficiary(t, f.env.Beneficiaries, f.project, "B1", "Sunita Behera", "123412341234")
	testutil.CreateBeneficiary(t, f.env.Beneficiaries, f.project, "B2", "Rabi Nayak", "223412341234")
	testutil.CreateBeneficiary(t, f.env.Beneficiaries, banki, "B3", "Mina Das", "323412341234")

	tests := []struct {
		name      string
		actor     user.User
		filter    beneficiary.QueryFilter
		wantTotal int
	}{
		{name: "district sees both villages", actor: f.collector, wantTotal: 3},
		{name: "village sees its own", actor: f.gramPanch, wantTotal: 2},
		{name: "search by name", actor: f.collector, filter: beneficiary.QueryFilter{Search: "nayak"}, wantTotal: 1},
		{name: "no agency, no projects", actor: f.contractor, wantTotal: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := f.env.BeneficiarySvc.Query(ctx, tt.actor, tt.filter, nil, core.Pagination{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}
