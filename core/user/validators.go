package user

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/pmajay/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role"

	permissionTag  = "permission"
	permissionText = "permission cannot be granted individually"

	jurisdictionTag  = "jurisdiction"
	jurisdictionText = "{0} is required for this role"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "password is too common"
	commonPasswords = []string{
		"password", "password1", "password123", "p@ssw0rd", "p@$$w0rd", "passw0rd!", "admin@123", "welcome@123",
		"india@123", "qwerty@123", "abc@1234", "pass@123", "test@1234", "changeme1!",
	}

	// grantablePermissions are the permissions checked on the user itself. Resource writes follow the
	// role allow-lists, so other permissions cannot be granted individually.
	grantablePermissions = []string{PermManageUsers}
)

func init() {
	sort.Strings(commonPasswords)
}

// InitValidators registers the user validators & translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	_ = validate.RegisterValidation(permissionTag, permissionValidation)
	core.RegisterCustomTranslation(validate, translator, permissionTag, permissionText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, UpdateUser{}, ResetUserPassword{})
	core.RegisterCustomTranslation(validate, translator, jurisdictionTag, jurisdictionText)
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslation(validate, translator, pwdNoCommonTag, pwdNoCommonText)
}

// LoadCommonPasswords extends the common password list with assets/common-passwords.txt.gz, if present.
func LoadCommonPasswords(conf *core.Config, logger core.Logger) {
	pwdAssetPath := filepath.Join(conf.WorkDir, "assets", "common-passwords.txt.gz")
	file, err := os.Open(pwdAssetPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn(fmt.Sprintf("opening common passwords: %v", err), err)
		}
		return
	}
	//goland:noinspection GoUnhandledErrorResult
	defer file.Close()

	gzRdr, err := gzip.NewReader(file)
	if err != nil {
		logger.Warn(fmt.Sprintf("reading common passwords: %v", err), err)
		return
	}
	scanner := bufio.NewScanner(gzRdr)
	for scanner.Scan() {
		commonPasswords = append(commonPasswords, strings.ToLower(strings.TrimSpace(scanner.Text())))
	}
	sort.Strings(commonPasswords)
}

// Custom Validators

func roleValidation(fl validator.FieldLevel) bool {
	return IsValidRole(fl.Field().String())
}

func permissionValidation(fl validator.FieldLevel) bool {
	return core.ContainsString(grantablePermissions, fl.Field().String())
}

// userStructValidation does struct level validation on NewUser and UpdateUser structs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		validateJurisdiction(usr.Role, usr.Jurisdiction, usr.Agency, sl)
		validatePassword(usr.Password, usr.Name, usr.Email, sl)
	case UpdateUser:
		updated := usr.apply(usr.orig)
		if usr.Role != nil || usr.Jurisdiction != nil || usr.Agency != nil {
			validateJurisdiction(updated.Role, updated.Jurisdiction, updated.Agency, sl)
		}
		if usr.Password != "" {
			validatePassword(usr.Password, updated.Name, updated.Email, sl)
		}
	case ResetUserPassword:
		validatePassword(usr.Password, "", "", sl)
	}
}

// validateJurisdiction checks that the jurisdiction fields required by the role tier are set.
func validateJurisdiction(role string, loc core.Location, agency string, sl validator.StructLevel) {
	report := func(field string) {
		sl.ReportError(loc, "jurisdiction."+field, field, jurisdictionTag, "")
	}
	switch RoleTier(role) {
	case TierVillage:
		if loc.Village == "" {
			report("village")
		}
		fallthrough
	case TierDistrict:
		if loc.District == "" {
			report("district")
		}
		fallthrough
	case TierState:
		if loc.State == "" {
			report("state")
		}
	}
	if role == RoleContractorVendor && agency == "" {
		sl.ReportError(agency, "agency", "Agency", jurisdictionTag, "")
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no user attrs similarity
// - no common password
func validatePassword(pwd, name, email string, sl validator.StructLevel) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	var (
		digitCount                             int
		hasUpper, hasLower, hasDig, hasSpecial bool
	)

	// - minLen: 8
	pwdLen := len(pwd)
	if pwdLen < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}
	for _, char := range pwd {
		// - no whitespace
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	// - not all numeric
	if digitCount == pwdLen {
		reportErr(pwdNotAllNumTag)
		return
	}

	// - complexity: 1 upper, 1 lower, 1 digit & 1 special
	hasDig = digitCount > 0
	hasSpecial = specialRegex.MatchString(pwd)
	if !(hasUpper && hasLower && hasDig && hasSpecial) {
		reportErr(pwdComplexityTag)
		return
	}

	// - no user attrs similarity
	getRatio := func(pass, usrAttr string) float64 {
		if usrAttr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(pass, ""), strings.Split(usrAttr, "")).QuickRatio()
	}
	localPart := strings.SplitN(email, "@", 2)[0]
	if getRatio(pwd, name) >= pwdMaxSim ||
		getRatio(pwd, email) >= pwdMaxSim ||
		getRatio(strings.ToLower(pwd), strings.ToLower(localPart)) >= pwdMaxSim {
		reportErr(pwdAttrSimTag)
		return
	}

	// - no common passwords
	lpwd := strings.ToLower(pwd)
	if idx := sort.SearchStrings(commonPasswords, lpwd); idx < len(commonPasswords) {
		if match := commonPasswords[idx]; lpwd == match {
			reportErr(pwdNoCommonTag)
			return
		}
	}
}
