// Package anomaly flags statistical outliers, threshold violations,
// and sudden changes in metric trends.
//
// Detection is z-score based: a value is anomalous when it lies more
// than a configured number of standard deviations from the mean of its
// reference window. Insufficient history is not an error; detectors
// return no insight rather than failing. All insight creation is
// delegated to the injected InsightCreator; the detector itself holds
// nothing but its configuration.
package anomaly
