package obs

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type call struct {
	Method string
	Path   string
	Body   string
}

// fakeRunner answers calls from canned responses keyed by "METHOD path".
// A path key without query string matches any query.
type fakeRunner struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []call
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeRunner) on(method, path, body string) *fakeRunner {
	f.responses[method+" "+path] = body
	return f
}

func (f *fakeRunner) fail(method, path string, err error) *fakeRunner {
	f.errs[method+" "+path] = err
	return f
}

func (f *fakeRunner) Run(_ context.Context, method, path string, body []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Method: method, Path: path, Body: string(body)})

	bare, _, _ := strings.Cut(path, "?")
	for _, key := range []string{method + " " + path, method + " " + bare} {
		if err, ok := f.errs[key]; ok {
			return nil, err
		}
		if resp, ok := f.responses[key]; ok {
			return []byte(resp), nil
		}
	}
	if method != "GET" {
		return []byte(`<status code="ok"/>`), nil
	}
	return nil, fmt.Errorf("GET %s: HTTP Error 404: %w", path, ErrNotFound)
}

func (f *fakeRunner) callsTo(method, prefix string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			out = append(out, c)
		}
	}
	return out
}

const requestXML = `<request id="300001" creator="maint-bot">
  <action type="maintenance_release">
    <source project="SUSE:Maintenance:31337" package="curl.SUSE_SLE-15_Update"/>
    <target project="SUSE:Updates:SLE-15:Update" package="curl.SUSE_SLE-15_Update"/>
  </action>
  <action type="maintenance_release">
    <source project="SUSE:Maintenance:31337" package="patchinfo"/>
    <target project="SUSE:Updates:SLE-15:Update" package="patchinfo.31337"/>
  </action>
  <state name="review" who="maint-bot" when="2024-03-01T08:00:00">
    <comment/>
  </state>
  <review state="accepted" when="2024-03-01T09:00:00" who="alice" by_group="qam-sle">
    <comment>Assigning alice</comment>
    <history who="alice" when="2024-03-01T09:00:00">
      <description>Review got assigned</description>
      <comment>Assigning alice to qam-sle</comment>
    </history>
  </review>
  <review state="new" by_group="qam-cloud"/>
  <review state="new" by_user="alice" when="2024-03-01T09:00:00" who="alice"/>
  <review state="accepted" by_group="qam-auto" who="bot" when="2024-03-01T08:30:00">
    <history who="bot" when="2024-03-01T08:30:00">
      <description>Review got accepted</description>
    </history>
  </review>
  <history who="maint-bot" when="2024-03-01T08:00:00">
    <description>Request created</description>
  </history>
</request>`

const approvedRequestXML = `<request id="300002" creator="maint-bot">
  <action type="maintenance_release">
    <source project="SUSE:Maintenance:31338" package="vim.SUSE_SLE-15_Update"/>
  </action>
  <state name="review" who="maint-bot" when="2024-03-01T08:00:00"/>
  <review state="accepted" by_group="qam-sle" who="alice" when="2024-03-01T09:00:00">
    <history who="alice" when="2024-03-01T09:00:00">
      <description>Review got assigned</description>
    </history>
  </review>
  <review state="accepted" by_user="alice" who="alice" when="2024-03-02T09:00:00">
    <history who="alice" when="2024-03-02T09:00:00">
      <description>Review got accepted</description>
      <comment>[oscqam] Approving</comment>
    </history>
  </review>
</request>`

const revokedRequestXML = `<request id="300003">
  <action type="maintenance_release">
    <source project="SUSE:Maintenance:31339" package="zlib"/>
  </action>
  <state name="revoked" who="maint-bot" when="2024-03-05T08:00:00"/>
  <review state="new" by_group="qam-sle"/>
</request>`

const groupListXML = `<directory count="5">
  <entry name="qam-sle"/>
  <entry name="qam-cloud"/>
  <entry name="qam-auto"/>
  <entry name="qam-openqa"/>
  <entry name="autobuild-team"/>
</directory>`

const qamSleXML = `<group>
  <title>qam-sle</title>
  <person>
    <person userid="alice"/>
    <person userid="bob"/>
  </person>
</group>`

const qamCloudXML = `<group>
  <title>qam-cloud</title>
  <person>
    <person userid="alice"/>
    <person userid="carol"/>
  </person>
</group>`

const commentsXML = `<comments request="300001">
  <comment who="bob" when="2024-03-02 10:00:00 UTC" id="12">second</comment>
  <comment who="alice" when="2024-03-01T10:00:00" id="11">first</comment>
</comments>`
