package rbac

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/nyabot/nyabot/errors"
)

// stateDoc is the persisted form of the whole service.
type stateDoc struct {
	CaseSensitive bool                  `json:"case_sensitive"`
	DefaultRole   string                `json:"default_role,omitempty"`
	Permissions   []string              `json:"permissions"`
	Roles         map[string]listsDoc   `json:"roles"`
	Users         map[string]userDoc    `json:"users"`
	RoleUsers     map[string][]string   `json:"role_users"`
	Inheritance   map[string][]string   `json:"role_inheritance"`
}

type listsDoc struct {
	Whitelist []string `json:"whitelist"`
	Blacklist []string `json:"blacklist"`
}

type userDoc struct {
	listsDoc
	Roles []string `json:"roles"`
}

func sortedSet(set permSet) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Save writes the whole state as one JSON document. The write is
// atomic: temp file then rename.
func (s *Service) Save() error {
	if s.opts.StoragePath == "" {
		return errors.New("rbac storage path not configured")
	}

	s.mu.RLock()
	doc := stateDoc{
		CaseSensitive: s.opts.CaseSensitive,
		DefaultRole:   s.opts.DefaultRole,
		Permissions:   s.permissions.Paths(),
		Roles:         make(map[string]listsDoc, len(s.roles)),
		Users:         make(map[string]userDoc, len(s.users)),
		RoleUsers:     make(map[string][]string, len(s.roleUsers)),
		Inheritance:   make(map[string][]string, len(s.inheritance)),
	}
	for role, rec := range s.roles {
		doc.Roles[role] = listsDoc{Whitelist: sortedSet(rec.Whitelist), Blacklist: sortedSet(rec.Blacklist)}
	}
	for user, rec := range s.users {
		doc.Users[user] = userDoc{
			listsDoc: listsDoc{Whitelist: sortedSet(rec.Whitelist), Blacklist: sortedSet(rec.Blacklist)},
			Roles:    append([]string(nil), rec.Roles...),
		}
	}
	for role, members := range s.roleUsers {
		doc.RoleUsers[role] = sortedSet(members)
	}
	for role, parents := range s.inheritance {
		doc.Inheritance[role] = append([]string(nil), parents...)
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding rbac state")
	}

	if err := os.MkdirAll(filepath.Dir(s.opts.StoragePath), 0o755); err != nil {
		return errors.Wrap(err, "creating rbac storage directory")
	}
	tmp := s.opts.StoragePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "writing rbac state")
	}
	if err := os.Rename(tmp, s.opts.StoragePath); err != nil {
		return errors.Wrap(err, "replacing rbac state file")
	}
	s.log.Debugw("RBAC state saved", "path", s.opts.StoragePath)
	return nil
}

// Load restores state from the storage path. A missing file is not an
// error: the service starts empty.
func (s *Service) Load() error {
	if s.opts.StoragePath == "" {
		return errors.New("rbac storage path not configured")
	}
	data, err := os.ReadFile(s.opts.StoragePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "reading rbac state")
	}

	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "decoding rbac state")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.opts.CaseSensitive = doc.CaseSensitive
	if doc.DefaultRole != "" {
		s.opts.DefaultRole = doc.DefaultRole
	}

	s.permissions = NewTrie()
	for _, raw := range doc.Permissions {
		p, err := ParsePath(raw, s.opts.CaseSensitive)
		if err != nil {
			s.log.Warnw("Skipping malformed persisted permission", "path", raw, "error", err.Error())
			continue
		}
		s.permissions.Add(p)
	}

	s.roles = make(map[string]*roleRecord, len(doc.Roles))
	for role, lists := range doc.Roles {
		s.roles[role] = &roleRecord{Whitelist: toSet(lists.Whitelist), Blacklist: toSet(lists.Blacklist)}
	}
	s.users = make(map[string]*userRecord, len(doc.Users))
	for user, rec := range doc.Users {
		s.users[user] = &userRecord{
			Whitelist: toSet(rec.Whitelist),
			Blacklist: toSet(rec.Blacklist),
			Roles:     append([]string(nil), rec.Roles...),
		}
	}
	s.roleUsers = make(map[string]permSet, len(doc.RoleUsers))
	for role, members := range doc.RoleUsers {
		s.roleUsers[role] = toSet(members)
	}
	s.inheritance = make(map[string][]string, len(doc.Inheritance))
	for role, parents := range doc.Inheritance {
		s.inheritance[role] = append([]string(nil), parents...)
	}

	// The default role must exist even in a restored snapshot that
	// predates it.
	if s.opts.DefaultRole != "" {
		if _, ok := s.roles[s.opts.DefaultRole]; !ok {
			s.roles[s.opts.DefaultRole] = &roleRecord{Whitelist: permSet{}, Blacklist: permSet{}}
			s.roleUsers[s.opts.DefaultRole] = permSet{}
		}
	}

	s.invalidate()
	s.log.Infow("RBAC state loaded", "path", s.opts.StoragePath, "users", len(s.users), "roles", len(s.roles))
	return nil
}

func toSet(list []string) permSet {
	set := permSet{}
	for _, v := range list {
		set.add(v)
	}
	return set
}
