//go:build aspectsrc

package svc

import "errors"

var errNotFound = errors.New("not found")

// Service serves users.
//
//metered:registry=ServiceMetrics
//measure:HitCount
type Service struct {
	metrics ServiceMetrics
	users   map[int]string
	flaky   int
}

// Get returns a user. Lookups fail while flaky is positive.
//
//measure:ErrorCount, Retry(max=2)
func (s *Service) Get(id int) (string, error) {
	if s.flaky > 0 {
		s.flaky--
		return "", errNotFound
	}
	name, ok := s.users[id]
	if !ok {
		return "", errNotFound
	}
	return name, nil
}

//measure:[ResponseTime, InFlight]
func (s *Service) Count() int {
	return len(s.users)
}

//measure:InFlight
func (s *Service) Explode() {
	panic("boom")
}

// Untouched stays as it is.
func (s *Service) Untouched() int {
	return len(s.users) + 1
}
