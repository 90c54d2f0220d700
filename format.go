package vmcaps

import (
	"fmt"
	"strings"
)

// String returns a human-readable summary of the machine's capability
// configuration, one line per capability in registry order.
func (m *Machine) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Machine capabilities (compat %s):\n", m.compat)
	for i := 0; i < m.reg.Len(); i++ {
		c := Capability(i)
		d := m.reg.Lookup(c)
		fmt.Fprintf(&b, "  cap-%s: default=%s effective=%s", d.Name, m.st.Defaults[c], m.st.Effective[c])
		if m.st.Overridden[c] {
			b.WriteString(" (overridden)")
		}
		b.WriteString("\n")
	}

	return b.String()
}
