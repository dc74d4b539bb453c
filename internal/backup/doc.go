// Package backup keeps copies of project files before they are overwritten.
//
// Before an explicit save replaces an existing project file, the previous
// version is copied into the backup directory under the document id and
// recorded in the history catalogue. Only the newest Keep copies per project
// survive rotation.
package backup
