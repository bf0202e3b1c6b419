package nav

import (
	"errors"
	"fmt"
)

// RouteName identifies a screen.
type RouteName string

const (
	RouteSignIn          RouteName = "sign-in"
	RouteBiometricUnlock RouteName = "biometric-unlock"
	RouteDealList        RouteName = "deal-list"
	RouteDealDetail      RouteName = "deal-detail"
	RouteDocumentList    RouteName = "document-list"
	RouteDocumentViewer  RouteName = "document-viewer"
	RouteUpload          RouteName = "upload"
	RouteNotifications   RouteName = "notifications"
	RouteHelp            RouteName = "help"
	RouteCommand         RouteName = "command"
)

// ErrMissingParam is returned for a route built without a required parameter.
var ErrMissingParam = errors.New("missing route parameter")

// Route is a screen plus its parameters.
type Route struct {
	Name       RouteName
	DealID     string
	DocumentID string
	Folder     string
}

// DealDetail returns the route for a deal's detail screen.
func DealDetail(dealID string) Route {
	return Route{Name: RouteDealDetail, DealID: dealID}
}

// DocumentList returns the document browser for a deal (or all deals when
// dealID is empty) opened at folder.
func DocumentList(dealID, folder string) Route {
	return Route{Name: RouteDocumentList, DealID: dealID, Folder: folder}
}

// DocumentViewer returns the route for previewing and annotating a document.
func DocumentViewer(dealID, documentID string) Route {
	return Route{Name: RouteDocumentViewer, DealID: dealID, DocumentID: documentID}
}

// Upload returns the upload screen targeting a deal folder.
func Upload(dealID, folder string) Route {
	return Route{Name: RouteUpload, DealID: dealID, Folder: folder}
}

// Validate checks that route parameters required by the screen are set.
func (r Route) Validate() error {
	switch r.Name {
	case RouteDealDetail:
		if r.DealID == "" {
			return fmt.Errorf("%w: %s requires a deal id", ErrMissingParam, r.Name)
		}
	case RouteDocumentViewer:
		if r.DealID == "" || r.DocumentID == "" {
			return fmt.Errorf(
				"%w: %s requires a deal id and a document id",
				ErrMissingParam, r.Name,
			)
		}
	case RouteUpload:
		if r.DealID == "" {
			return fmt.Errorf("%w: %s requires a deal id", ErrMissingParam, r.Name)
		}
	}
	return nil
}
