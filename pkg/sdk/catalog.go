package sdk

import (
	"strings"
)

// DemoSecret is the shared password of every demonstration account.
const DemoSecret = "123456"

const (
	DemoSchoolID   = "00000000-0000-4000-8000-00000000d000"
	DemoSchoolName = "École Démo EduTrack"
)

// DemoCatalog maps login identifiers to fixed demonstration identities.
// It is read-only after construction; lookups hand out deep copies.
type DemoCatalog struct {
	secret  string
	entries map[string]Identity
}

// NewDemoCatalog builds a catalog from identities keyed by their email.
func NewDemoCatalog(secret string, identities ...Identity) *DemoCatalog {
	c := &DemoCatalog{
		secret:  secret,
		entries: make(map[string]Identity, len(identities)),
	}
	for _, id := range identities {
		c.entries[normalizeIdentifier(id.Email)] = id.Clone()
	}
	return c
}

// Lookup returns the identity registered for identifier.
func (c *DemoCatalog) Lookup(identifier string) (Identity, bool) {
	if c == nil {
		return Identity{}, false
	}
	id, ok := c.entries[normalizeIdentifier(identifier)]
	if !ok {
		return Identity{}, false
	}
	return id.Clone(), true
}

// Match returns the identity when both identifier and secret match.
func (c *DemoCatalog) Match(identifier, secret string) (Identity, bool) {
	if c == nil || secret != c.secret {
		return Identity{}, false
	}
	return c.Lookup(identifier)
}

// Contains reports whether identity is the catalog entry for its email.
// Only ID and role are compared so a hydrated record that picked up a
// display tweak still counts as the demo account.
func (c *DemoCatalog) Contains(identity Identity) bool {
	entry, ok := c.Lookup(identity.Email)
	return ok && entry.ID == identity.ID && entry.Role == identity.Role
}

// Len returns the number of entries.
func (c *DemoCatalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

func normalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var defaultCatalog = NewDemoCatalog(DemoSecret, demoIdentities()...)

// DefaultDemoCatalog returns the compiled-in demonstration accounts.
func DefaultDemoCatalog() *DemoCatalog {
	return defaultCatalog
}

func demoIdentities() []Identity {
	base := func(id, email, name string, role Role, phone string) Identity {
		return Identity{
			ID:         id,
			Email:      email,
			Name:       name,
			Role:       role,
			Phone:      phone,
			SchoolID:   DemoSchoolID,
			SchoolName: DemoSchoolName,
			Active:     true,
			Demo:       true,
		}
	}
	must := func(i Identity, err error) Identity {
		if err != nil {
			panic(err)
		}
		return i
	}

	return []Identity{
		must(base("00000000-0000-4000-8000-000000000001", "parent@demo.com", "Marie Ngono", RoleParent, "+237690000001").
			WithProfile(ParentProfile{ChildIDs: []string{"00000000-0000-4000-8000-000000000002"}})),
		must(base("00000000-0000-4000-8000-000000000002", "student@demo.com", "Paul Ngono", RoleStudent, "").
			WithProfile(StudentProfile{ClassName: "3ème A", ParentID: "00000000-0000-4000-8000-000000000001"})),
		must(base("00000000-0000-4000-8000-000000000003", "teacher@demo.com", "Jean Mbarga", RoleTeacher, "+237690000003").
			WithProfile(TeacherProfile{Subjects: []string{"Mathématiques", "Physique"}})),
		must(base("00000000-0000-4000-8000-000000000004", "secretary@demo.com", "Aline Fouda", RoleSecretary, "+237690000004").
			WithProfile(SecretaryProfile{})),
		must(base("00000000-0000-4000-8000-000000000005", "principal@demo.com", "Dr. Samuel Etoa", RolePrincipal, "+237690000005").
			WithProfile(PrincipalProfile{SchoolName: DemoSchoolName})),
		must(Identity{
			ID:     "00000000-0000-4000-8000-000000000006",
			Email:  "admin@demo.com",
			Name:   "Administrateur Démo",
			Role:   RoleAdmin,
			Active: true,
			Demo:   true,
		}.WithProfile(AdminProfile{})),
	}
}
