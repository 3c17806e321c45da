package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/Los_Angeles")
	if err != nil {
		panic(err)
	}
}

// force timezone to the district's local zone, servers may end up in
// other regions which disturbs date math based on <time.Time>.Year()/Month()/Day()
func Now() time.Time {
	return time.Now().In(Location)
}
