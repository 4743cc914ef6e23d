package domain

// Every event-owned record exposes its key and owning event so stores can
// enforce isolation without knowing the concrete type.

func (t *Table) GetID() string        { return t.ID }
func (t *Table) GetEventID() string   { return t.EventID }
func (t *Table) SetEventID(id string) { t.EventID = id }

func (t *Team) GetID() string        { return t.ID }
func (t *Team) GetEventID() string   { return t.EventID }
func (t *Team) SetEventID(id string) { t.EventID = id }

func (l *LightHouse) GetID() string        { return l.ID }
func (l *LightHouse) GetEventID() string   { return l.EventID }
func (l *LightHouse) SetEventID(id string) { l.EventID = id }

func (m *MentorHelpRequest) GetID() string        { return m.ID }
func (m *MentorHelpRequest) GetEventID() string   { return m.EventID }
func (m *MentorHelpRequest) SetEventID(id string) { m.EventID = id }

func (h *Hardware) GetID() string        { return h.ID }
func (h *Hardware) GetEventID() string   { return h.EventID }
func (h *Hardware) SetEventID(id string) { h.EventID = id }

func (d *HardwareDevice) GetID() string        { return d.ID }
func (d *HardwareDevice) GetEventID() string   { return d.EventID }
func (d *HardwareDevice) SetEventID(id string) { d.EventID = id }

func (w *Workshop) GetID() string        { return w.ID }
func (w *Workshop) GetEventID() string   { return w.EventID }
func (w *Workshop) SetEventID(id string) { w.EventID = id }
