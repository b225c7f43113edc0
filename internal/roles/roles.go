// Пакет roles: единая точка перевода между представлениями роли:
// числовые legacy ID, канонические токены, slug для URL, отображаемые имена.
// Все функции тотальны: неизвестная роль деградирует к общему дескриптору.
package roles

import (
	"errors"
	"strconv"
	"strings"
)

// Role: канонический токен роли.
type Role string

const (
	Admin             Role = "admin"
	TechnicalDirector Role = "technicalDirector"
	ProjectManager    Role = "projectManager"
	Estimator         Role = "estimator"
	SiteEngineer      Role = "siteEngineer"
	Buyer             Role = "buyer"
	Accounts          Role = "accounts"
)

// Fallback: роль для пустого или неизвестного числового идентификатора.
const Fallback = SiteEngineer

// Значения общего дескриптора для нераспознанных ролей.
const (
	GenericSlug        = "user"
	GenericDisplayName = "User"
	GenericThemeColor  = "gray"
)

var ErrUnknownRole = errors.New("неизвестная роль")

// Descriptor: статическое описание роли.
type Descriptor struct {
	Role          Role
	LegacyID      int
	Slug          string
	DisplayName   string
	DashboardPath string
	ThemeColor    string
}

var descriptors = []Descriptor{
	newDescriptor(Admin, 1, "admin", "Admin", "red"),
	newDescriptor(TechnicalDirector, 2, "technical-director", "Technical Director", "purple"),
	newDescriptor(Estimator, 3, "estimator", "Estimator", "green"),
	newDescriptor(SiteEngineer, 4, "site-engineer", "Site Engineer", "orange"),
	newDescriptor(Accounts, 5, "accounts", "Accounts", "indigo"),
	newDescriptor(ProjectManager, 6, "project-manager", "Project Manager", "blue"),
	newDescriptor(Buyer, 8, "buyer", "Buyer", "teal"),
}

// legacyAliases: старые строковые имена ролей, встречающиеся в записях пользователей.
var legacyAliases = map[string]Role{
	"sitesupervisor":  SiteEngineer,
	"site_engineer":   SiteEngineer,
	"project_manager": ProjectManager,
	"td":              TechnicalDirector,
	"procurement":     Buyer,
}

var (
	byRole  = make(map[Role]Descriptor, len(descriptors))
	byID    = make(map[int]Role, len(descriptors))
	bySlug  = make(map[string]Role, len(descriptors))
	byAlias = make(map[string]Role, len(descriptors)*3+len(legacyAliases))
)

func init() {
	for _, d := range descriptors {
		byRole[d.Role] = d
		byID[d.LegacyID] = d.Role
		bySlug[d.Slug] = d.Role
		byAlias[strings.ToLower(string(d.Role))] = d.Role
		byAlias[d.Slug] = d.Role
		byAlias[strings.ToLower(d.DisplayName)] = d.Role
	}
	for alias, r := range legacyAliases {
		byAlias[alias] = r
	}
}

func newDescriptor(r Role, legacyID int, slug, displayName, color string) Descriptor {
	return Descriptor{
		Role:          r,
		LegacyID:      legacyID,
		Slug:          slug,
		DisplayName:   displayName,
		DashboardPath: "/" + slug + "/dashboard",
		ThemeColor:    color,
	}
}

func (r Role) String() string {
	return string(r)
}

// Valid сообщает, входит ли роль в перечисленный набор.
func (r Role) Valid() bool {
	_, ok := byRole[r]
	return ok
}

// All возвращает копию таблицы дескрипторов в порядке legacy ID.
func All() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Parse строго разбирает строковое представление роли.
// Принимает токен в любом регистре, slug, отображаемое имя, legacy-алиас
// или числовую строку.
func Parse(raw string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", ErrUnknownRole
	}
	if r, ok := byAlias[key]; ok {
		return r, nil
	}
	if id, err := strconv.Atoi(key); err == nil {
		return FromID(id)
	}
	return "", ErrUnknownRole
}

// FromID строго разбирает legacy числовой идентификатор роли.
func FromID(id int) (Role, error) {
	if r, ok := byID[id]; ok {
		return r, nil
	}
	return "", ErrUnknownRole
}

// ResolveID: тотальный вариант FromID.
func ResolveID(id int) Role {
	if r, err := FromID(id); err == nil {
		return r
	}
	return Fallback
}

// ResolveToken переводит сырое значение в токен роли.
// Пустое значение и неизвестная числовая строка дают Fallback,
// неизвестная строка возвращается как есть.
func ResolveToken(raw string) Role {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Fallback
	}
	if r, err := Parse(trimmed); err == nil {
		return r
	}
	if _, err := strconv.Atoi(trimmed); err == nil {
		return Fallback
	}
	return Role(trimmed)
}

// ResolveIdentity: единственная точка разбора роли на границе аутентификации.
// Имя роли имеет приоритет, legacy ID используется, если имени нет.
func ResolveIdentity(roleName string, legacyID *int64) Role {
	if strings.TrimSpace(roleName) != "" {
		return ResolveToken(roleName)
	}
	if legacyID != nil {
		return ResolveID(int(*legacyID))
	}
	return Fallback
}

// Lookup возвращает дескриптор или ErrUnknownRole.
func Lookup(r Role) (Descriptor, error) {
	if d, ok := byRole[r]; ok {
		return d, nil
	}
	return Descriptor{}, ErrUnknownRole
}

// DescriptorFor возвращает дескриптор роли либо общий дескриптор.
func DescriptorFor(r Role) Descriptor {
	if d, err := Lookup(r); err == nil {
		return d
	}
	return Descriptor{
		Role:          r,
		Slug:          GenericSlug,
		DisplayName:   GenericDisplayName,
		DashboardPath: "/" + GenericSlug + "/dashboard",
		ThemeColor:    GenericThemeColor,
	}
}

// FromSlug: обратное отображение slug → роль для известного набора.
func FromSlug(slug string) (Role, bool) {
	r, ok := bySlug[slug]
	return r, ok
}

func Slug(r Role) string          { return DescriptorFor(r).Slug }
func DashboardPath(r Role) string { return "/" + Slug(r) + "/dashboard" }
func DisplayName(r Role) string   { return DescriptorFor(r).DisplayName }
func ThemeColor(r Role) string    { return DescriptorFor(r).ThemeColor }

// LegacyID возвращает числовой ID роли или 0 для неизвестной роли.
func LegacyID(r Role) int { return DescriptorFor(r).LegacyID }
