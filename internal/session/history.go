package session

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/tracuu-benhly/lookup/internal/models"
	"github.com/tracuu-benhly/lookup/internal/textutil"
)

// OnDeleteHistory removes the history entry id from the visible candidates
// at once and then asks the store to delete it, exactly once. A malformed id
// is rejected before anything changes.
//
// The id stays hidden for the rest of the session whatever the store
// answers, including from lookups that were already in flight. A failed
// delete is logged; the next session reads the store as it is.
func (s *Session) OnDeleteHistory(id any) error {
	hid, err := models.ParseHistoryID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.removed[hid] = struct{}{}
	s.candidates = s.candidates.WithoutHistory(hid)
	s.dropdown = nextDropdown(s.dropdown, eventCandidatesChanged, textutil.Normalize(s.query) == "", s.candidates.Len())
	s.mu.Unlock()
	s.notify()

	if s.history != nil {
		go s.deleteHistory(hid)
	}
	return nil
}

func (s *Session) deleteHistory(id uint) {
	ctx, cancel := s.requestContext()
	defer cancel()

	err := s.history.Delete(ctx, id)
	switch {
	case err == nil:
		s.logger.WithField("id", id).Debug("History entry deleted")
	case errors.Is(err, models.ErrHistoryNotFound):
		s.logger.WithField("id", id).Debug("History entry already gone")
	default:
		s.logger.WithError(err).WithFields(logrus.Fields{
			"id":     id,
			"hidden": true,
		}).Warn("Failed to delete history entry")
	}
}
