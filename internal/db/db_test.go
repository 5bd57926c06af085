package db

import "testing"

func TestDSNWithTimezone(t *testing.T) {
	cases := []struct {
		name string
		dsn  string
		tz   string
		want string
	}{
		{
			name: "keyword dsn",
			dsn:  "host=localhost user=app dbname=stagecrawl",
			tz:   "Asia/Seoul",
			want: "host=localhost user=app dbname=stagecrawl TimeZone=Asia/Seoul",
		},
		{
			name: "url dsn without query",
			dsn:  "postgres://app@localhost/stagecrawl",
			tz:   "UTC",
			want: "postgres://app@localhost/stagecrawl?TimeZone=UTC",
		},
		{
			name: "url dsn with query",
			dsn:  "postgres://app@localhost/stagecrawl?sslmode=disable",
			tz:   "UTC",
			want: "postgres://app@localhost/stagecrawl?sslmode=disable&TimeZone=UTC",
		},
		{
			name: "dsn already sets timezone",
			dsn:  "host=localhost TimeZone=Asia/Seoul",
			tz:   "UTC",
			want: "host=localhost TimeZone=Asia/Seoul",
		},
		{
			name: "no timezone configured",
			dsn:  "host=localhost",
			tz:   "",
			want: "host=localhost",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := dsnWithTimezone(tc.dsn, tc.tz); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
