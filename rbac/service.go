// Package rbac is role-based access control: wildcarded permission
// paths, roles with DAG inheritance, per-user and per-role white and
// black lists. The check rule is blacklist over whitelist over
// default-deny.
package rbac

import (
	"sync"

	"go.uber.org/zap"

	"github.com/nyabot/nyabot/errors"
	"github.com/nyabot/nyabot/logger"
)

// Target selects what a grant applies to.
type Target string

const (
	TargetUser Target = "user"
	TargetRole Target = "role"
)

// Mode selects which list a grant lands on.
type Mode string

const (
	ModeWhite Mode = "white"
	ModeBlack Mode = "black"
)

// maxCacheEntries bounds the effective-permission memo.
const maxCacheEntries = 256

type permSet map[string]struct{}

func (s permSet) add(p string)    { s[p] = struct{}{} }
func (s permSet) remove(p string) { delete(s, p) }

type roleRecord struct {
	Whitelist permSet
	Blacklist permSet
}

type userRecord struct {
	Whitelist permSet
	Blacklist permSet
	Roles     []string
}

type effective struct {
	whitelist []Path
	blacklist []Path
}

// Options configure a Service.
type Options struct {
	// StoragePath is where the state document persists; empty disables
	// persistence.
	StoragePath string
	// DefaultRole is auto-assigned to users created on first contact.
	DefaultRole string
	// CaseSensitive controls path-component comparison.
	CaseSensitive bool
}

// Service holds the live RBAC state. All methods are safe for concurrent
// use.
type Service struct {
	mu sync.RWMutex

	opts        Options
	permissions *Trie
	roles       map[string]*roleRecord
	users       map[string]*userRecord
	roleUsers   map[string]permSet
	inheritance map[string][]string

	cache map[string]*effective

	log *zap.SugaredLogger
}

// NewService builds an empty service. Call Load to restore persisted
// state.
func NewService(opts Options) *Service {
	s := &Service{
		opts:        opts,
		permissions: NewTrie(),
		roles:       make(map[string]*roleRecord),
		users:       make(map[string]*userRecord),
		roleUsers:   make(map[string]permSet),
		inheritance: make(map[string][]string),
		cache:       make(map[string]*effective),
		log:         logger.Named("rbac"),
	}
	if opts.DefaultRole != "" {
		s.roles[opts.DefaultRole] = &roleRecord{Whitelist: permSet{}, Blacklist: permSet{}}
		s.roleUsers[opts.DefaultRole] = permSet{}
	}
	return s
}

func (s *Service) parse(raw string) (Path, error) {
	return ParsePath(raw, s.opts.CaseSensitive)
}

// invalidate drops the whole memo. Callers hold the write lock.
func (s *Service) invalidate() {
	s.cache = make(map[string]*effective)
}

// AddPermission registers a permission path. Already-registered paths
// are left alone.
func (s *Service) AddPermission(raw string) error {
	p, err := s.parse(raw)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.permissions.Contains(p) {
		s.permissions.Add(p)
		s.invalidate()
	}
	return nil
}

// RemovePermission unregisters a permission path.
func (s *Service) RemovePermission(raw string) error {
	p, err := s.parse(raw)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions.Remove(p)
	s.invalidate()
	return nil
}

// PermissionExists reports whether the exact path is registered.
func (s *Service) PermissionExists(raw string) bool {
	p, err := s.parse(raw)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissions.Contains(p)
}

// AddRole creates a role. When existOK is false, a duplicate is an
// error.
func (s *Service) AddRole(role string, existOK bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role]; ok {
		if existOK {
			return nil
		}
		return errors.Newf("role %q already exists", role)
	}
	s.roles[role] = &roleRecord{Whitelist: permSet{}, Blacklist: permSet{}}
	s.roleUsers[role] = permSet{}
	s.invalidate()
	return nil
}

// RemoveRole deletes a role, detaching it from inheritance edges and
// from every user holding it.
func (s *Service) RemoveRole(role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "role %q", role)
	}

	delete(s.inheritance, role)
	for child, parents := range s.inheritance {
		s.inheritance[child] = removeString(parents, role)
	}
	for user := range s.roleUsers[role] {
		if rec, ok := s.users[user]; ok {
			rec.Roles = removeString(rec.Roles, role)
		}
	}
	delete(s.roles, role)
	delete(s.roleUsers, role)
	s.invalidate()
	return nil
}

// RoleExists reports whether the role is known.
func (s *Service) RoleExists(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roles[role]
	return ok
}

// SetRoleInheritance makes role inherit parent's permissions. An edge
// that would close a cycle is rejected.
func (s *Service) SetRoleInheritance(role, parent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "role %q", role)
	}
	if _, ok := s.roles[parent]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "parent role %q", parent)
	}
	if role == parent {
		return errors.New("a role cannot inherit itself")
	}
	if s.wouldCycle(role, parent) {
		return errors.Newf("inheritance %s -> %s would create a cycle", role, parent)
	}
	for _, existing := range s.inheritance[role] {
		if existing == parent {
			return nil
		}
	}
	s.inheritance[role] = append(s.inheritance[role], parent)
	s.invalidate()
	return nil
}

// wouldCycle walks up from newParent looking for role.
func (s *Service) wouldCycle(role, newParent string) bool {
	visited := map[string]bool{}
	var walk func(current string) bool
	walk = func(current string) bool {
		if current == role {
			return true
		}
		if visited[current] {
			return false
		}
		visited[current] = true
		for _, p := range s.inheritance[current] {
			if walk(p) {
				return true
			}
		}
		return false
	}
	return walk(newParent)
}

// AddUser creates a user, assigned the default role if one is set.
func (s *Service) AddUser(user string, existOK bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(user, existOK)
}

func (s *Service) addUserLocked(user string, existOK bool) error {
	if _, ok := s.users[user]; ok {
		if existOK {
			return nil
		}
		return errors.Newf("user %q already exists", user)
	}
	rec := &userRecord{Whitelist: permSet{}, Blacklist: permSet{}}
	if s.opts.DefaultRole != "" {
		rec.Roles = []string{s.opts.DefaultRole}
		if members, ok := s.roleUsers[s.opts.DefaultRole]; ok {
			members.add(user)
		}
	}
	s.users[user] = rec
	s.invalidate()
	return nil
}

// RemoveUser deletes a user.
func (s *Service) RemoveUser(user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[user]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "user %q", user)
	}
	for _, role := range rec.Roles {
		if members, ok := s.roleUsers[role]; ok {
			members.remove(user)
		}
	}
	delete(s.users, user)
	s.invalidate()
	return nil
}

// UserExists reports whether the user is known.
func (s *Service) UserExists(user string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[user]
	return ok
}

// UserHasRole reports whether the user holds role directly or through
// inheritance. Unknown users are created on the fly.
func (s *Service) UserHasRole(user, role string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user]; !ok {
		if err := s.addUserLocked(user, true); err != nil {
			return false
		}
	}
	return s.collectRoles(user)[role]
}

// collectRoles expands the user's role set through inheritance. Callers
// hold at least the read lock.
func (s *Service) collectRoles(user string) map[string]bool {
	all := map[string]bool{}
	var walk func(role string)
	walk = func(role string) {
		if all[role] {
			return
		}
		all[role] = true
		for _, parent := range s.inheritance[role] {
			walk(parent)
		}
	}
	if rec, ok := s.users[user]; ok {
		for _, role := range rec.Roles {
			walk(role)
		}
	}
	return all
}

// AssignRole gives the user a role. Unknown users are created.
func (s *Service) AssignRole(user, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "role %q", role)
	}
	if _, ok := s.users[user]; !ok {
		if err := s.addUserLocked(user, true); err != nil {
			return err
		}
	}
	rec := s.users[user]
	for _, existing := range rec.Roles {
		if existing == role {
			return nil
		}
	}
	rec.Roles = append(rec.Roles, role)
	s.roleUsers[role].add(user)
	s.invalidate()
	return nil
}

// UnassignRole takes a role away from the user.
func (s *Service) UnassignRole(user, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[user]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "user %q", user)
	}
	rec.Roles = removeString(rec.Roles, role)
	if members, ok := s.roleUsers[role]; ok {
		members.remove(user)
	}
	s.invalidate()
	return nil
}

// Grant puts a permission on the target's white or black list. Granting
// to one list removes the permission from the opposite list. Unknown
// permissions are registered on the fly.
func (s *Service) Grant(target Target, name, permission string, mode Mode) error {
	p, err := s.parse(permission)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.permissions.Contains(p) {
		s.permissions.Add(p)
	}

	white, black, err := s.lists(target, name)
	if err != nil {
		return err
	}
	normalized := p.String()
	if mode == ModeBlack {
		black.add(normalized)
		white.remove(normalized)
	} else {
		white.add(normalized)
		black.remove(normalized)
	}
	s.invalidate()
	return nil
}

// Revoke removes a permission from both of the target's lists.
func (s *Service) Revoke(target Target, name, permission string) error {
	p, err := s.parse(permission)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	white, black, err := s.lists(target, name)
	if err != nil {
		return err
	}
	white.remove(p.String())
	black.remove(p.String())
	s.invalidate()
	return nil
}

func (s *Service) lists(target Target, name string) (white, black permSet, err error) {
	switch target {
	case TargetUser:
		rec, ok := s.users[name]
		if !ok {
			return nil, nil, errors.Wrapf(errors.ErrNotFound, "user %q", name)
		}
		return rec.Whitelist, rec.Blacklist, nil
	case TargetRole:
		rec, ok := s.roles[name]
		if !ok {
			return nil, nil, errors.Wrapf(errors.ErrNotFound, "role %q", name)
		}
		return rec.Whitelist, rec.Blacklist, nil
	default:
		return nil, nil, errors.Newf("unknown grant target %q", target)
	}
}

// Check decides whether the user may use the permission. Unknown users
// are created with the default role. The rule is: any blacklist match
// denies, then any whitelist match allows, then deny.
func (s *Service) Check(user, permission string) bool {
	target, err := s.parse(permission)
	if err != nil {
		s.log.Warnw("Rejecting malformed permission path", "path", permission, "error", err.Error())
		return false
	}

	s.mu.Lock()
	if _, ok := s.users[user]; !ok {
		_ = s.addUserLocked(user, true)
	}
	eff := s.effectiveLocked(user)
	s.mu.Unlock()

	for _, black := range eff.blacklist {
		if black.Matches(target) {
			return false
		}
	}
	for _, white := range eff.whitelist {
		if white.Matches(target) {
			return true
		}
	}
	return false
}

// effectiveLocked merges the user's direct lists with every inherited
// role's lists, memoized per user. Callers hold the write lock.
func (s *Service) effectiveLocked(user string) *effective {
	if eff, ok := s.cache[user]; ok {
		return eff
	}

	white := permSet{}
	black := permSet{}
	if rec, ok := s.users[user]; ok {
		for p := range rec.Whitelist {
			white.add(p)
		}
		for p := range rec.Blacklist {
			black.add(p)
		}
	}
	for role := range s.collectRoles(user) {
		if rec, ok := s.roles[role]; ok {
			for p := range rec.Whitelist {
				white.add(p)
			}
			for p := range rec.Blacklist {
				black.add(p)
			}
		}
	}

	eff := &effective{
		whitelist: s.parseSet(white),
		blacklist: s.parseSet(black),
	}

	// Bounded memo: on overflow drop an arbitrary entry rather than
	// growing without limit.
	if len(s.cache) >= maxCacheEntries {
		for k := range s.cache {
			delete(s.cache, k)
			break
		}
	}
	s.cache[user] = eff
	return eff
}

func (s *Service) parseSet(set permSet) []Path {
	out := make([]Path, 0, len(set))
	for raw := range set {
		p, err := s.parse(raw)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
