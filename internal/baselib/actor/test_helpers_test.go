package actor

// testMsg is the generic string-payload message type shared by this
// package's table of ServiceKey/Receptionist/lifecycle tests.
type testMsg struct {
	BaseMessage
	data string
}

func (m *testMsg) MessageType() string { return "testMsg" }

func newTestMsg(payload string) *testMsg {
	return &testMsg{data: payload}
}
