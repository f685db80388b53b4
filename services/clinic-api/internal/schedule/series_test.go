package schedule

import "testing"

func intp(v int) *int { return &v }

func TestValidateSeries(t *testing.T) {
	cases := []struct {
		name    string
		session *int
		total   *int
		wantErr bool
	}{
		{"both absent", nil, nil, false},
		{"only session", intp(3), nil, false},
		{"only total", nil, intp(10), false},
		{"within plan", intp(3), intp(10), false},
		{"last session", intp(10), intp(10), false},
		{"exceeds plan", intp(11), intp(10), true},
		{"zero session", intp(0), intp(10), true},
		{"negative total", intp(1), intp(-2), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateSeries(c.session, c.total)
			if (err != nil) != c.wantErr {
				t.Fatalf("ValidateSeries(%v, %v) err = %v, wantErr %v", c.session, c.total, err, c.wantErr)
			}
		})
	}
}
