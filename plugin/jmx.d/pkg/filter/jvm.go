// SPDX-License-Identifier: GPL-3.0-or-later

package filter

var jvmConfs = []Conf{
	{Include: Block{
		"domain": "java.lang",
		"type":   "Memory",
		"attribute": map[string]any{
			"HeapMemoryUsage.used":         map[string]any{"alias": "jvm.heap_memory"},
			"HeapMemoryUsage.committed":    map[string]any{"alias": "jvm.heap_memory_committed"},
			"HeapMemoryUsage.init":         map[string]any{"alias": "jvm.heap_memory_init"},
			"HeapMemoryUsage.max":          map[string]any{"alias": "jvm.heap_memory_max"},
			"NonHeapMemoryUsage.used":      map[string]any{"alias": "jvm.non_heap_memory"},
			"NonHeapMemoryUsage.committed": map[string]any{"alias": "jvm.non_heap_memory_committed"},
			"NonHeapMemoryUsage.init":      map[string]any{"alias": "jvm.non_heap_memory_init"},
			"NonHeapMemoryUsage.max":       map[string]any{"alias": "jvm.non_heap_memory_max"},
		},
	}},
	{Include: Block{
		"domain": "java.lang",
		"type":   "Threading",
		"attribute": map[string]any{
			"ThreadCount":       map[string]any{"alias": "jvm.thread_count"},
			"DaemonThreadCount": map[string]any{"alias": "jvm.daemon_thread_count"},
		},
	}},
	{Include: Block{
		"domain": "java.lang",
		"type":   "ClassLoading",
		"attribute": map[string]any{
			"LoadedClassCount":   map[string]any{"alias": "jvm.loaded_classes"},
			"UnloadedClassCount": map[string]any{"alias": "jvm.unloaded_classes", "metric_type": "counter"},
		},
	}},
	{Include: Block{
		"domain": "java.lang",
		"type":   "GarbageCollector",
		"name":   "*",
		"attribute": map[string]any{
			"CollectionCount": map[string]any{"alias": "jvm.gc.collection_count", "metric_type": "counter"},
			"CollectionTime":  map[string]any{"alias": "jvm.gc.collection_time", "metric_type": "counter"},
		},
	}},
	{Include: Block{
		"domain": "java.lang",
		"type":   "OperatingSystem",
		"attribute": map[string]any{
			"OpenFileDescriptorCount": map[string]any{"alias": "jvm.os.open_file_descriptors"},
		},
	}},
	{Include: Block{
		"domain": "java.lang",
		"type":   "Runtime",
		"attribute": map[string]any{
			"Uptime": map[string]any{"alias": "jvm.uptime"},
		},
	}},
}

// DefaultJVM returns the built-in filters for the java.lang platform beans.
func DefaultJVM() *FilterSet {
	fs, err := Parse(jvmConfs)
	if err != nil {
		panic(err)
	}
	return fs
}
