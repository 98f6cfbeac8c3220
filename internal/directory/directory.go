// Package directory maps review groups to their members. A Directory is
// built once per review cycle and only read afterwards, so it can be shared
// between goroutines without locking.
package directory

import (
	"sort"
	"strings"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Entry is one group and its members.
type Entry struct {
	Group   string
	Members []string
}

// Directory is a read-only snapshot of group membership.
type Directory struct {
	groups map[string]map[string]struct{}
	byUser map[string][]string
}

// New builds a snapshot. Duplicate entries for a group are merged.
func New(entries ...Entry) *Directory {
	d := &Directory{
		groups: make(map[string]map[string]struct{}, len(entries)),
		byUser: make(map[string][]string),
	}
	for _, e := range entries {
		members, ok := d.groups[e.Group]
		if !ok {
			members = make(map[string]struct{}, len(e.Members))
			d.groups[e.Group] = members
		}
		for _, m := range e.Members {
			if _, dup := members[m]; dup {
				continue
			}
			members[m] = struct{}{}
			d.byUser[m] = append(d.byUser[m], e.Group)
		}
	}
	for user := range d.byUser {
		sort.Strings(d.byUser[user])
	}
	return d
}

// Has reports whether the group is part of the snapshot.
func (d *Directory) Has(group string) bool {
	_, ok := d.groups[group]
	return ok
}

// IsMember reports whether user belongs to group.
func (d *Directory) IsMember(group, user string) bool {
	_, ok := d.groups[group][user]
	return ok
}

// Members returns the sorted members of a group, if the group is known.
func (d *Directory) Members(group string) fn.Option[[]string] {
	members, ok := d.groups[group]
	if !ok {
		return fn.None[[]string]()
	}
	out := make([]string, 0, len(members))
	for m := range members {
		out = append(out, m)
	}
	sort.Strings(out)
	return fn.Some(out)
}

// GroupsOf returns the sorted groups user is a member of.
func (d *Directory) GroupsOf(user string) []string {
	return append([]string(nil), d.byUser[user]...)
}

// Names returns every group name, sorted.
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.groups))
	for g := range d.groups {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}

// Len is the number of groups.
func (d *Directory) Len() int { return len(d.groups) }

// Filter decides which build service groups and projects take part in the
// QA workflow.
type Filter interface {
	IsReviewGroup(name string) bool
	IsMaintenanceProject(project string) bool
}

// IBSFilter matches the internal build service naming: every "qam" group
// except the automated ones.
type IBSFilter struct{}

var ignoredIBSGroups = map[string]bool{
	"qam-auto":   true,
	"qam-openqa": true,
}

func (IBSFilter) IsReviewGroup(name string) bool {
	return strings.HasPrefix(name, "qam") && !ignoredIBSGroups[name]
}

func (IBSFilter) IsMaintenanceProject(project string) bool {
	return strings.Contains(project, "SUSE:Maintenance") || strings.HasPrefix(project, "SUSE:SLFO:")
}

// OBSFilter matches the public build service naming.
type OBSFilter struct{}

func (OBSFilter) IsReviewGroup(name string) bool {
	return strings.HasPrefix(name, "qa-opensuse.org")
}

func (OBSFilter) IsMaintenanceProject(project string) bool {
	return strings.Contains(project, "openSUSE:Maintenance")
}

// FilterFor picks the filter for an API URL.
func FilterFor(apiURL string) Filter {
	if strings.Contains(apiURL, "opensuse") {
		return OBSFilter{}
	}
	return IBSFilter{}
}
