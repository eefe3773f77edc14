// Package funnel computes step-wise conversion funnels over the event
// source.
//
// A funnel is an ordered sequence of event-defined steps. A user
// qualifies for step i only if they produced a matching event in the
// analyzed range and also qualified for step i-1, so out-of-order
// arrivals never inflate later steps. Conversion and drop-off rates
// follow directly from the qualifying set sizes; empty denominators
// yield 0, never a division error.
//
// The time window parameter is carried in the result for reporting but
// does not bound per-user step-to-step latency; membership requires
// "ever occurred in range".
package funnel
