// Package keys builds the cache keys used for every entity type.
//
// Keys are hierarchical so that invalidating a parent reaches every key
// below it:
//
//	[computers]                                  All(Computers)
//	[computers list]                             Lists(Computers)
//	[computers list {"owner":"u1"}]              List(Computers, filters)
//	[computers detail]                           Details(Computers)
//	[computers detail "c1"]                      Detail(Computers, "c1")
//	[computers detail "c1" attachments]          ComputerAttachments("c1")
//	[projects detail "p1" attachments]           ProjectAttachments("p1")
//	[auth currentUser]                           CurrentUser()
//
// Every builder is deterministic and free of side effects.
package keys
