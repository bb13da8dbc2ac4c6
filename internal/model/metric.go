package model

// Metric names reported by the built-in sources. Percentages are 0-100,
// traffic and disk_io are bytes per second, domains is a count of running
// libvirt domains.
const (
	MetricCPU     = "cpu"
	MetricMemory  = "memory"
	MetricDisk    = "disk"
	MetricTraffic = "traffic"
	MetricDiskIO  = "disk_io"
	MetricLoad1   = "load1"
	MetricDomains = "domains"
)
