// Package release knows about published releases of the tool: it lists
// them from the release index, answers "latest" and "outdated" questions,
// and downloads a release asset into the global install directory.
//
// The release list is cached in memory and in a sqlite file under the
// storage root so repeated launches do not hit the API each time.
package release
