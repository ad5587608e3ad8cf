package platform

// ClientSnapshot is the subset of window state an event source diffs between polls.
type ClientSnapshot struct {
	Clients   []WindowID
	Active    WindowID
	Minimized map[WindowID]bool
	Leaders   map[WindowID]WindowID
}

// DiffClients derives window events from two successive snapshots. Events
// are ordered destroyed, created, reparented, minimized/restored, focused so
// consumers never see a focus for a window they have not been told about.
func DiffClients(prev, next ClientSnapshot) []WindowEvent {
	var events []WindowEvent

	prevSet := make(map[WindowID]struct{}, len(prev.Clients))
	for _, id := range prev.Clients {
		prevSet[id] = struct{}{}
	}
	nextSet := make(map[WindowID]struct{}, len(next.Clients))
	for _, id := range next.Clients {
		nextSet[id] = struct{}{}
	}

	for _, id := range prev.Clients {
		if _, ok := nextSet[id]; !ok {
			events = append(events, WindowEvent{Kind: EventDestroyed, Window: id})
		}
	}
	for _, id := range next.Clients {
		if _, ok := prevSet[id]; !ok {
			events = append(events, WindowEvent{Kind: EventCreated, Window: id})
		}
	}

	for _, id := range next.Clients {
		leader := next.Leaders[id]
		if leader != 0 && leader != id && leader != prev.Leaders[id] {
			events = append(events, WindowEvent{Kind: EventReparented, Window: id, Creator: leader})
		}
	}

	for _, id := range next.Clients {
		was := prev.Minimized[id]
		is := next.Minimized[id]
		if _, existed := prevSet[id]; !existed {
			if is {
				events = append(events, WindowEvent{Kind: EventMinimized, Window: id})
			}
			continue
		}
		switch {
		case is && !was:
			events = append(events, WindowEvent{Kind: EventMinimized, Window: id})
		case !is && was:
			events = append(events, WindowEvent{Kind: EventRestored, Window: id})
		}
	}

	if next.Active != 0 && next.Active != prev.Active {
		if _, ok := nextSet[next.Active]; ok {
			events = append(events, WindowEvent{Kind: EventFocused, Window: next.Active})
		}
	}

	return events
}
