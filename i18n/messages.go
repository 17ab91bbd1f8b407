package i18n

import "golang.org/x/text/language"

var tables = map[language.Tag]map[string]string{
	language.English: {
		"tasks.successful": "{name} finished successfully.",
		"tasks.failed":     "{name} failed.",

		"tasks.types.indices_create_update":     "Search index update",
		"tasks.types.resource_import":           "Resource import",
		"tasks.types.resource_export":           "Resource export",
		"tasks.types.search_export":             "Search results export",
		"tasks.types.broadcast_user_ntfc":       "User notification broadcast",
		"tasks.types.broadcast_admin_ntfc":      "Admin notification broadcast",
		"tasks.types.resource_maintenance_hook": "Resource maintenance",
		"tasks.types.structure_update":          "Text structure update",

		"tasks.results.resource_import":  "Updated: {updated}, created: {created}, errors: {errors}.",
		"tasks.results.structure_update": "Created: {created}, updated: {updated}, deleted: {deleted}.",

		"errors.unexpected":             "An unexpected error occurred.",
		"errors.importDataNoMatch":      "The imported data does not match the resource.",
		"errors.uploadInvalidMimeType":  "The uploaded file has an invalid type.",
		"errors.searchIndexUnavailable": "The search index is currently unavailable.",

		"general.downloadSaved": "Download saved as {filename}.",
	},
	language.German: {
		"tasks.successful": "{name} erfolgreich abgeschlossen.",
		"tasks.failed":     "{name} fehlgeschlagen.",

		"tasks.types.indices_create_update":     "Aktualisierung des Suchindex",
		"tasks.types.resource_import":           "Ressourcen-Import",
		"tasks.types.resource_export":           "Ressourcen-Export",
		"tasks.types.search_export":             "Export der Suchergebnisse",
		"tasks.types.broadcast_user_ntfc":       "Benachrichtigung an Nutzer:innen",
		"tasks.types.broadcast_admin_ntfc":      "Benachrichtigung an Admins",
		"tasks.types.resource_maintenance_hook": "Ressourcen-Wartung",
		"tasks.types.structure_update":          "Aktualisierung der Textstruktur",

		"tasks.results.resource_import":  "Aktualisiert: {updated}, erstellt: {created}, Fehler: {errors}.",
		"tasks.results.structure_update": "Erstellt: {created}, aktualisiert: {updated}, gelöscht: {deleted}.",

		"errors.unexpected":            "Ein unerwarteter Fehler ist aufgetreten.",
		"errors.importDataNoMatch":     "Die importierten Daten passen nicht zur Ressource.",
		"errors.uploadInvalidMimeType": "Die hochgeladene Datei hat einen ungültigen Typ.",

		"general.downloadSaved": "Download gespeichert als {filename}.",
	},
}
