package validators

import "go.mongodb.org/mongo-driver/bson"

// DoctorValidator leaves slot items untyped: legacy records mix strings,
// dates and the odd malformed value, and those must stay readable.
var DoctorValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"specialization",
			"available_slots",
			"bookings",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"email": bson.M{
				"bsonType": "string",
			},

			"specialization": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"available_slots": bson.M{
				"bsonType": "array",
			},

			"bookings": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"patient_name", "time"},
					"properties": bson.M{
						"patient_name": bson.M{"bsonType": "string"},
						"time":         bson.M{"bsonType": "string"},
						"date":         bson.M{"bsonType": "string"},
					},
				},
			},

			"linked_user_id": bson.M{
				"bsonType": "string",
			},

			"version": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"last_updated": bson.M{
				"bsonType": "date",
			},
		},
	},
}
