package graph

import "github.com/duvholt/bifrost/internal/errs"

// overrunErr is delivered to a subscriber's Err() once its queue has been
// dropped for falling subscriberLag events behind the writer.
var overrunErr = errs.New(errs.KindStreamOverrun, "subscriber fell too far behind the change log")
