package jobs

import "context"

// PendingForTag returns the still-pending jobs on queue whose tags include
// tag, letting callers check "is there already a job in flight for this
// record" without keeping their own index.
func (m *Manager) PendingForTag(ctx context.Context, queue, tag string) ([]Info, error) {
	ids, err := m.PendingJobs(ctx, queue)
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, id := range ids {
		rec, err := m.getRecord(ctx, id)
		if err != nil {
			continue
		}
		if !rec.Status.Pending() {
			continue
		}
		for _, t := range rec.Tags {
			if t == tag {
				out = append(out, rec.info())
				break
			}
		}
	}
	return out, nil
}
