package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type (
	// User is a balance-bearing account. Balance is mutated only by the
	// ledger engine and by PayUser.
	User struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Password string `json:"-"`
		IsAdmin  bool   `json:"is_admin"`
		Balance  Money  `json:"value"`
	}

	// CompanyProfile is the business-registration payload of a company.
	// The ledger never interprets it; it must round-trip unchanged.
	CompanyProfile struct {
		CommercialFeature string     `json:"commercial_feature"`
		IsWorking         bool       `json:"is_working"`
		LegalEntity       string     `json:"legal_entity"`
		FileNumber        *string    `json:"file_number"`
		RegisterNumber    string     `json:"register_number"`
		StartDate         time.Time  `json:"start_date"`
		StopDate          *time.Time `json:"stop_date"`
		GeneralTaxMission string     `json:"general_tax_mission"`
		ValueTaxMission   *string    `json:"value_tax_mission"`
		ActivityNature    string     `json:"activity_nature"`
		ActivityLocation  string     `json:"activity_location"`
		Accounts          string     `json:"accounts"`
		JoiningDate       *time.Time `json:"joining_date"`
		NaturalID         *string    `json:"natural_id"`
		RecordSide        *string    `json:"record_side"`
		RecordNumber      string     `json:"record_number"`
		UserName          string     `json:"user_name"`
		Passport          *string    `json:"passport"`
		VerificationCode  *string    `json:"verification_code"`
		Email             string     `json:"email"`
	}

	Company struct {
		ID int64 `json:"id"`
		CompanyProfile
	}

	// Funder is a named backer of exactly one company.
	Funder struct {
		ID        int64  `json:"id"`
		Name      string `json:"name"`
		CompanyID int64  `json:"company_id"`
	}

	Expense struct {
		ID          int64     `json:"id"`
		Value       Money     `json:"value"`
		Description string    `json:"description"`
		Time        time.Time `json:"time"`
		UserID      int64     `json:"user_id"`
		CompanyID   int64     `json:"company_id"`
	}

	// Income records funds a company received from an admin-attributed
	// source. The admin's balance is not touched.
	Income struct {
		ID          int64     `json:"id"`
		Value       Money     `json:"value"`
		Description string    `json:"description"`
		Time        time.Time `json:"time"`
		AdminID     int64     `json:"admin_id"`
		CompanyID   int64     `json:"company_id"`
	}

	// MoneyCapital is the expense-shaped transfer of the database backend.
	MoneyCapital struct {
		ID          int64     `json:"id"`
		Value       Money     `json:"value"`
		Description string    `json:"description"`
		Time        time.Time `json:"time"`
		UserID      int64     `json:"user_id"`
		CompanyID   int64     `json:"company_id"`
	}

	Document struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		Time      time.Time `json:"time"`
		CompanyID int64     `json:"company_id"`
	}

	// LedgerFilter restricts ledger listings. A nil field places no
	// restriction on that dimension.
	LedgerFilter struct {
		ActorID   *int64
		CompanyID *int64
	}
)

var (
	ErrEmptyName      = fmt.Errorf("%w: empty name", ErrInvalidValue)
	ErrFunderRequired = fmt.Errorf("%w: company requires at least one funder", ErrInvalidValue)
	ErrDuplicateName  = fmt.Errorf("%w: name already taken", ErrInvalidValue)
	ErrInvalidPath    = fmt.Errorf("%w: malformed document path", ErrInvalidValue)
	ErrUnsafeFileName = fmt.Errorf("%w: unsafe file name", ErrInvalidValue)
)

// Validate checks the fields a funder needs before it can be persisted.
func (f Funder) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (p CompanyProfile) Validate() error {
	if strings.TrimSpace(p.CommercialFeature) == "" {
		return fmt.Errorf("%w: empty commercial feature", ErrInvalidValue)
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if u.Password == "" {
		return fmt.Errorf("%w: empty password", ErrInvalidValue)
	}
	return nil
}

// Path is the file-store location of the document bytes. It is derived from
// the row on every call and never persisted.
func (d Document) Path() string {
	return DocumentPath(d.CompanyID, d.ID, d.Name)
}

func DocumentPath(companyID, documentID int64, name string) string {
	return strconv.FormatInt(companyID, 10) + "/" + strconv.FormatInt(documentID, 10) + "_" + name
}

// ParseDocumentPath splits a path produced by DocumentPath back into its
// company id, document id and original file name.
func ParseDocumentPath(path string) (companyID, documentID int64, name string, err error) {
	dir, file, ok := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !ok || dir == "" || file == "" {
		return 0, 0, "", ErrInvalidPath
	}
	companyID, err = strconv.ParseInt(dir, 10, 64)
	if err != nil {
		return 0, 0, "", ErrInvalidPath
	}
	idText, name, ok := strings.Cut(file, "_")
	if !ok || name == "" {
		return 0, 0, "", ErrInvalidPath
	}
	documentID, err = strconv.ParseInt(idText, 10, 64)
	if err != nil {
		return 0, 0, "", ErrInvalidPath
	}
	return companyID, documentID, name, nil
}

// SanitizeFileName rejects names that would escape the company directory.
func SanitizeFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "", ErrUnsafeFileName
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return "", ErrUnsafeFileName
	}
	return name, nil
}

// Matches reports whether a row attributed to actorID and companyID passes
// the filter.
func (f LedgerFilter) Matches(actorID, companyID int64) bool {
	if f.ActorID != nil && *f.ActorID != actorID {
		return false
	}
	if f.CompanyID != nil && *f.CompanyID != companyID {
		return false
	}
	return true
}
