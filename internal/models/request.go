package models

import (
	"strings"
	"time"
)

// RequestState is the overall state of a build service request.
type RequestState string

const (
	RequestStateNew        RequestState = "new"
	RequestStateReview     RequestState = "review"
	RequestStateAccepted   RequestState = "accepted"
	RequestStateDeclined   RequestState = "declined"
	RequestStateRevoked    RequestState = "revoked"
	RequestStateSuperseded RequestState = "superseded"
	RequestStateDeleted    RequestState = "deleted"
)

// Active reports whether reviews can still happen on the request.
func (s RequestState) Active() bool {
	return s == RequestStateNew || s == RequestStateReview
}

// Closed reports whether the request ended without being released.
func (s RequestState) Closed() bool {
	switch s {
	case RequestStateDeclined, RequestStateRevoked, RequestStateSuperseded, RequestStateDeleted:
		return true
	}
	return false
}

// UserReview is a review addressed to a single user.
type UserReview struct {
	User  string
	State string
}

// Request is the metadata of a maintenance review request as fetched from
// the build service, together with its raw review history.
type Request struct {
	ID          string
	SrcProject  string
	State       RequestState
	StateAt     time.Time
	Creator     string
	Packages    []string
	Groups      []string
	UserReviews []UserReview
	Events      []ReviewEvent
}

// Incident is the last component of the source project.
func (r *Request) Incident() string {
	return r.SrcProject[strings.LastIndex(r.SrcProject, ":")+1:]
}

// ReportProject is the project name test reports are filed under. Staged
// SLFO projects map to their product increment.
func (r *Request) ReportProject() string {
	if strings.HasPrefix(r.SrcProject, "SUSE:SLFO:") {
		parts := strings.Split(r.SrcProject, ":")
		return "SUSE:PI:" + parts[len(parts)-2]
	}
	return r.SrcProject
}

// RRID identifies the request in test report URLs.
func (r *Request) RRID() string {
	return r.ReportProject() + ":" + r.ID
}

// Comment is a comment attached to a request.
type Comment struct {
	ID     string
	Who    string
	When   time.Time
	Text   string
	Parent string
}
