package attendance

import "context"

// InstructorReport attaches attendees to each of the instructor's sessions.
// Sessions with no attendance carry an empty, non-nil list.
func (s *Service) InstructorReport(ctx context.Context, instructorID string) ([]SessionReport, error) {
	sessions, err := s.ListSessions(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListAllAttendance(ctx)
	if err != nil {
		return nil, storageErr("list attendance", err)
	}

	bySession := make(map[string][]Record, len(sessions))
	for _, rec := range all {
		bySession[rec.SessionID] = append(bySession[rec.SessionID], rec)
	}

	report := make([]SessionReport, 0, len(sessions))
	for _, sess := range sessions {
		attendees := bySession[sess.ID]
		if attendees == nil {
			attendees = []Record{}
		}
		report = append(report, SessionReport{Session: sess, Attendees: attendees})
	}
	return report, nil
}
